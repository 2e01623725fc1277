// Copyright (c) 2023 Paweł Gaczyński
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package urio provides misuse-resistant bindings to the Linux kernel's
// io_uring interface. Operations return a Completion that can be awaited by
// blocking or by registering a callback; the ring keeps every buffer pinned
// for as long as the kernel may touch it, and bounds in-flight operations to
// the completion queue depth so completions are never dropped.
package urio

import (
	goerrors "errors"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"
	"github.com/pawelgaczynski/urio/iouring"
	"github.com/pawelgaczynski/urio/logger"
	"github.com/pawelgaczynski/urio/pkg/errors"
	"github.com/rs/zerolog"
)

// poisonPill is the user data of the internal NOP that unblocks the reaper
// at teardown. Real tickets never reach this value.
const poisonPill uint64 = math.MaxUint64

type Ring struct {
	ring     *iouring.Ring
	config   Config
	logger   zerolog.Logger
	tickets  *ticketTable
	inflight *inFlight
	profile  *profile
	pool     *pond.WorkerPool

	// sqMu serializes SQE reservation, filling and tail publication.
	sqMu      sync.Mutex
	loaded    uint64
	submitted uint64

	// drainMu elects the single CQ consumer in lazy reaper mode.
	drainMu    sync.Mutex
	cqes       []*iouring.CompletionQueueEvent
	reaperDone chan struct{}

	closed uint32
}

// NewRing sets up a ring with default configuration.
func NewRing() (*Ring, error) {
	return NewRingWith()
}

// NewRingWith sets up a ring with the given options. The returned ring is
// safe for concurrent submission from multiple goroutines.
func NewRingWith(options ...RingOption) (*Ring, error) {
	config := defaultConfig()
	for _, option := range options {
		option(&config)
	}

	var setupFlags uint32
	if config.sqPoll {
		setupFlags |= iouring.SetupSQPoll
	}
	if config.ioPoll {
		setupFlags |= iouring.SetupIOPoll
	}

	lowRing, err := iouring.CreateRing(config.depth, setupFlags)
	if err != nil {
		return nil, err
	}

	cqEntries := lowRing.CQEntries()

	ring := &Ring{
		ring:       lowRing,
		config:     config,
		logger:     logger.NewLogger("ring", config.loggerLevel, config.prettyLogger),
		tickets:    newTicketTable(cqEntries),
		inflight:   newInFlight(cqEntries),
		profile:    newProfile(config.printProfileOnDrop),
		cqes:       make([]*iouring.CompletionQueueEvent, cqEntries),
		reaperDone: make(chan struct{}),
	}

	if config.asyncWorkers > 0 {
		ring.pool = pond.New(config.asyncWorkers, int(cqEntries))
	}

	if config.lazyReaper {
		close(ring.reaperDone)
	} else {
		go ring.runReaper()
	}

	ring.logger.Info().
		Uint("depth", config.depth).
		Uint32("cqEntries", cqEntries).
		Bool("sqPoll", config.sqPoll).
		Bool("lazyReaper", config.lazyReaper).
		Msg("ring created")

	return ring, nil
}

// InFlight reports the number of submitted operations the kernel has not
// completed yet.
func (r *Ring) InFlight() int {
	return r.tickets.used()
}

// MaxInFlight reports the in-flight quota: the completion queue depth.
// Submissions beyond this bound wait for a completion to free a ticket.
func (r *Ring) MaxInFlight() int {
	return int(r.ring.CQEntries())
}

// Fd exposes the ring file descriptor.
func (r *Ring) Fd() int {
	return r.ring.Fd()
}

// prepare runs the common submission path: acquire a ticket (blocking while
// the in-flight quota is exhausted), reserve an SQE under the submission
// lock, let fill describe the operation, then stamp ordering flags and the
// ticket. The SQE becomes visible to the kernel on the next flush.
func (r *Ring) prepare(ordering Ordering, fill func(sqe *iouring.SubmissionQueueEntry, slot uint32)) (*Completion, error) {
	if atomic.LoadUint32(&r.closed) == 1 {
		return nil, errors.ErrRingClosed
	}

	completion := newCompletion(r)

	stopPop := r.profile.measure(stageTicketPop)
	ticket, err := r.tickets.acquire(completion)
	stopPop()

	if err != nil {
		return nil, err
	}

	completion.ticket = ticket

	stopWait := r.profile.measure(stageSQMuWait)
	r.sqMu.Lock()
	stopWait()

	stopHold := r.profile.measure(stageSQMuHold)
	defer func() {
		r.sqMu.Unlock()
		stopHold()
	}()

	completion.sqeID = atomic.AddUint64(&r.loaded, 1)

	sqe, err := r.reserveSQE()
	if err != nil {
		if _, releaseErr := r.tickets.release(ticket); releaseErr != nil {
			r.logger.Error().Err(releaseErr).Msg("ticket release after failed reservation")
		}

		return nil, err
	}

	fill(sqe, ticketSlot(ticket))
	sqe.Flags |= ordering.sqeFlags()
	sqe.UserData = ticket

	return completion, nil
}

// reserveSQE claims a submission entry, flushing the queue to the kernel
// when it is full. Caller holds sqMu.
func (r *Ring) reserveSQE() (*iouring.SubmissionQueueEntry, error) {
	stop := r.profile.measure(stageGetSQE)
	defer stop()

	for {
		sqe, err := r.ring.GetSQE()
		if err == nil {
			return sqe, nil
		}

		if _, err = r.submitLocked(); err != nil {
			return nil, err
		}
	}
}

func (r *Ring) submitLocked() (uint, error) {
	stop := r.profile.measure(stageEnterSQE)
	defer stop()

	for {
		submitted, err := r.ring.Submit()
		if err != nil {
			if goerrors.Is(err, iouring.ErrInterrupredSyscall) || goerrors.Is(err, iouring.ErrAgain) {
				continue
			}

			return 0, err
		}

		atomic.AddUint64(&r.submitted, uint64(submitted))

		return submitted, nil
	}
}

// SubmitAll pushes every prepared entry to the kernel. Waiting on a
// completion does this automatically; call it when submitted operations
// will not be awaited promptly.
func (r *Ring) SubmitAll() error {
	r.sqMu.Lock()
	defer r.sqMu.Unlock()

	_, err := r.submitLocked()

	return err
}

// ensureSubmitted guarantees the entry identified by sqeID has been handed
// to the kernel.
func (r *Ring) ensureSubmitted(sqeID uint64) error {
	for atomic.LoadUint64(&r.submitted) < sqeID {
		r.sqMu.Lock()
		if atomic.LoadUint64(&r.submitted) >= sqeID {
			r.sqMu.Unlock()

			return nil
		}

		flushed, err := r.submitLocked()
		r.sqMu.Unlock()

		if err != nil {
			return err
		}
		if flushed == 0 {
			// nothing left to flush, the entry is with the kernel
			return nil
		}
	}

	return nil
}

// Close flushes a drain-ordered poison pill NOP, waits until the kernel has
// answered every outstanding operation, optionally prints the profile and
// releases the ring resources. In-flight completions are still delivered;
// submissions racing with Close fail with ErrRingClosed.
func (r *Ring) Close() error {
	if !atomic.CompareAndSwapUint32(&r.closed, 0, 1) {
		return nil
	}

	r.sqMu.Lock()
	sqe, err := r.reserveSQE()
	if err == nil {
		sqe.PrepareNop()
		sqe.Flags |= iouring.SqeIODrain
		sqe.UserData = poisonPill
		_, err = r.submitLocked()
	}
	r.sqMu.Unlock()

	if err != nil {
		r.logger.Error().Err(err).Msg("failed to flush poison pill")
	}

	if r.config.lazyReaper {
		r.drainUntilPoisoned()
	} else {
		<-r.reaperDone
	}

	// anything still held here means the kernel will never answer
	r.failPending(errors.ErrRingClosed)
	r.tickets.close()

	if r.pool != nil {
		r.pool.StopAndWait()
	}

	if r.config.printProfileOnDrop {
		if printErr := r.profile.print(os.Stdout); printErr != nil {
			r.logger.Error().Err(printErr).Msg("profile print failed")
		}
	}

	return r.ring.QueueExit()
}
