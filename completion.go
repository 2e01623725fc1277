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
	"sync"
	"syscall"

	"github.com/pawelgaczynski/urio/pkg/errors"
)

// Completion is the user-space half of one in-flight operation. It starts
// pending, becomes ready when the reaper delivers the kernel's result, and
// is consumed by exactly one of Wait, a registered callback, or Discard.
//
// While a Completion is pending the kernel may touch the operation's buffer
// at any time. The ring keeps the buffer pinned for that whole window, which
// is why Discard blocks instead of cancelling.
type Completion struct {
	ring   *Ring
	ticket uint64
	sqeID  uint64

	mu       sync.Mutex
	cond     *sync.Cond
	done     bool
	consumed bool
	res      int32
	cqeFlags uint32
	err      error
	callback func(int32, error)
}

func newCompletion(ring *Ring) *Completion {
	completion := &Completion{ring: ring}
	completion.cond = sync.NewCond(&completion.mu)

	return completion
}

// Done reports whether the kernel has delivered a result.
func (c *Completion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// Wait blocks until the kernel reports the operation's result and returns
// it: a non-negative byte count (or new descriptor for accept), or the
// kernel errno as a syscall.Errno. A linked operation whose predecessor did
// not fully complete fails with syscall.ECANCELED.
func (c *Completion) Wait() (int32, error) {
	err := c.ring.ensureSubmitted(c.sqeID)
	if err != nil {
		return 0, err
	}

	stop := c.ring.profile.measure(stageWait)
	defer stop()

	if c.ring.config.lazyReaper {
		c.ring.drainUntilDone(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.done {
		c.cond.Wait()
	}

	if c.consumed {
		return 0, errors.ErrCompletionConsumed
	}
	c.consumed = true

	return c.res, c.err
}

// Discard abandons interest in the result. It does not cancel the
// operation: it blocks until the kernel has reported a result, because the
// kernel still holds a reference to the buffer until then.
func (c *Completion) Discard() {
	err := c.ring.ensureSubmitted(c.sqeID)
	if err != nil {
		return
	}

	if c.ring.config.lazyReaper {
		c.ring.drainUntilDone(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.done {
		c.cond.Wait()
	}
	c.consumed = true
}

// OnComplete registers a callback invoked with the operation's result. The
// waker slot holds a single callback, last writer wins. If the result is
// already ready the callback fires immediately. Callbacks run on the ring's
// worker pool when one is configured; otherwise they run inline on the
// goroutine that delivers the result, or on the caller of OnComplete when
// the result was already ready.
func (c *Completion) OnComplete(callback func(int32, error)) {
	err := c.ring.ensureSubmitted(c.sqeID)
	if err != nil {
		callback(0, err)

		return
	}

	c.mu.Lock()
	if !c.done {
		c.callback = callback
		c.mu.Unlock()

		return
	}

	c.consumed = true
	res, resErr := c.res, c.err
	c.mu.Unlock()

	c.ring.dispatch(func() {
		callback(res, resErr)
	})
}

// CQEFlags exposes the raw flags field of the completion entry.
func (c *Completion) CQEFlags() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cqeFlags
}

// fill delivers the kernel's result, transitions the completion to ready
// and wakes whichever waiter is registered.
func (c *Completion) fill(res int32, cqeFlags uint32) {
	var err error
	if res < 0 {
		err = syscall.Errno(uintptr(-res))
	}

	c.mu.Lock()
	c.res = res
	c.cqeFlags = cqeFlags
	c.err = err
	c.done = true
	callback := c.callback
	c.callback = nil
	if callback != nil {
		c.consumed = true
	}
	c.mu.Unlock()

	c.cond.Broadcast()

	if callback != nil {
		c.ring.dispatch(func() {
			callback(res, err)
		})
	}
}

// fail completes the operation locally with a ring-level error. Used only
// when the ring itself is broken and the kernel will never answer.
func (c *Completion) fail(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()

		return
	}
	c.err = err
	c.done = true
	callback := c.callback
	c.callback = nil
	if callback != nil {
		c.consumed = true
	}
	c.mu.Unlock()

	c.cond.Broadcast()

	if callback != nil {
		c.ring.dispatch(func() {
			callback(0, err)
		})
	}
}
