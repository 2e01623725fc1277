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

package urio

import (
	goerrors "errors"

	"github.com/pawelgaczynski/urio/iouring"
)

// runReaper loops blocking for at least one completion and draining the
// completion queue, until the poison pill submitted by Close is observed.
func (r *Ring) runReaper() {
	defer close(r.reaperDone)

	for {
		stop := r.profile.measure(stageEnterCQE)
		err := r.ring.EnterWait(1)
		stop()

		if err != nil {
			if goerrors.Is(err, iouring.ErrInterrupredSyscall) || goerrors.Is(err, iouring.ErrAgain) {
				continue
			}

			r.logger.Error().Err(err).Msg("reaper enter failed")
			r.failPending(err)

			return
		}

		if poisoned := r.reap(); poisoned {
			return
		}
	}
}

// reap copies out every ready completion entry, frees its CQ slot, and
// delivers the result to the completion object registered under its ticket.
// Reports whether the poison pill was seen. Single consumer: either the
// reaper goroutine or the holder of drainMu.
func (r *Ring) reap() bool {
	stop := r.profile.measure(stageReapReady)
	defer stop()

	var poisoned bool

	for {
		count := r.ring.PeekBatchCQE(r.cqes)
		if count == 0 {
			break
		}

		for i := 0; i < count; i++ {
			cqe := r.cqes[i]
			userData := cqe.UserData()
			res := cqe.Res()
			cqeFlags := cqe.Flags()
			// entries are small, copy out before processing so the kernel
			// gets its CQ slot back promptly
			r.ring.CQAdvance(1)

			if userData == poisonPill {
				poisoned = true

				continue
			}

			r.deliver(userData, res, cqeFlags)
		}
	}

	return poisoned
}

func (r *Ring) deliver(ticket uint64, res int32, cqeFlags uint32) {
	stopPush := r.profile.measure(stageTicketPush)
	completion, err := r.tickets.release(ticket)
	stopPush()

	if err != nil {
		r.logger.Error().Err(err).Uint64("ticket", ticket).Msg("dropping unmatched completion")

		return
	}

	r.inflight.clear(ticketSlot(ticket))
	completion.fill(res, cqeFlags)
}

// drainUntilDone is the lazy reaper: the waiter whose completion is still
// pending takes the drain lock and performs enter+reap on behalf of
// everyone; concurrent waiters block on the lock and re-check their own
// state when it is their turn.
func (r *Ring) drainUntilDone(completion *Completion) {
	for !completion.Done() {
		r.drainMu.Lock()
		if completion.Done() {
			r.drainMu.Unlock()

			return
		}

		stop := r.profile.measure(stageEnterCQE)
		err := r.ring.EnterWait(1)
		stop()

		if err != nil && !goerrors.Is(err, iouring.ErrInterrupredSyscall) && !goerrors.Is(err, iouring.ErrAgain) {
			r.drainMu.Unlock()
			r.logger.Error().Err(err).Msg("lazy drain enter failed")
			completion.fail(err)

			return
		}

		r.reap()
		r.drainMu.Unlock()
	}
}

// drainUntilPoisoned consumes completions inline until the teardown pill
// arrives. Only used in lazy reaper mode during Close.
func (r *Ring) drainUntilPoisoned() {
	for {
		r.drainMu.Lock()
		err := r.ring.EnterWait(1)
		if err != nil && !goerrors.Is(err, iouring.ErrInterrupredSyscall) && !goerrors.Is(err, iouring.ErrAgain) {
			r.drainMu.Unlock()
			r.logger.Error().Err(err).Msg("teardown drain enter failed")

			return
		}

		poisoned := r.reap()
		r.drainMu.Unlock()

		if poisoned {
			return
		}
	}
}

// failPending wakes every outstanding completion with a ring-level error.
// Only called when the ring can no longer receive kernel completions.
func (r *Ring) failPending(err error) {
	for _, completion := range r.tickets.drainHolders() {
		completion.fail(err)
	}
}

// dispatch runs a completion callback, on the worker pool when configured.
func (r *Ring) dispatch(task func()) {
	if r.pool != nil {
		r.pool.Submit(task)

		return
	}

	task()
}
