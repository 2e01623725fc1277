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

	"github.com/pawelgaczynski/urio/pkg/errors"
)

// ticketTable bounds the number of in-flight operations to the completion
// queue depth, so the kernel can never produce a completion the queue
// cannot hold. A ticket is the SQE user data: the slot index in the low
// 32 bits, the slot generation in the high 32. The generation detects a
// completion addressed to a slot that has already been recycled.
type ticketTable struct {
	mu      sync.Mutex
	notFull *sync.Cond

	free        []uint32
	generations []uint32
	holders     []*Completion
	closed      bool
}

func newTicketTable(size uint32) *ticketTable {
	table := &ticketTable{
		free:        make([]uint32, 0, size),
		generations: make([]uint32, size),
		holders:     make([]*Completion, size),
	}
	table.notFull = sync.NewCond(&table.mu)

	for slot := int(size) - 1; slot >= 0; slot-- {
		table.free = append(table.free, uint32(slot))
	}

	return table
}

func ticketSlot(ticket uint64) uint32 {
	return uint32(ticket)
}

func ticketGeneration(ticket uint64) uint32 {
	return uint32(ticket >> 32)
}

// acquire installs the completion into a free slot, blocking while the
// table is full. Returns the encoded ticket.
func (t *ticketTable) acquire(completion *Completion) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.free) == 0 && !t.closed {
		t.notFull.Wait()
	}

	if t.closed {
		return 0, errors.ErrRingClosed
	}

	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.holders[slot] = completion

	return uint64(t.generations[slot])<<32 | uint64(slot), nil
}

// release recovers the completion for a reported ticket, frees the slot,
// bumps its generation and wakes one blocked acquirer.
func (t *ticketTable) release(ticket uint64) (*Completion, error) {
	slot := ticketSlot(ticket)
	generation := ticketGeneration(ticket)

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(slot) >= len(t.holders) || t.generations[slot] != generation || t.holders[slot] == nil {
		return nil, errors.ErrorStaleTicket(ticket)
	}

	completion := t.holders[slot]
	t.holders[slot] = nil
	t.generations[slot]++
	t.free = append(t.free, slot)
	t.notFull.Signal()

	return completion, nil
}

// used reports the number of tickets currently held, i.e. the in-flight count.
func (t *ticketTable) used() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.generations) - len(t.free)
}

// drainHolders empties every occupied slot and returns the orphaned
// completions. Used when the ring is torn down or its reaper dies and the
// kernel will never answer.
func (t *ticketTable) drainHolders() []*Completion {
	t.mu.Lock()
	defer t.mu.Unlock()

	var held []*Completion

	for slot, holder := range t.holders {
		if holder == nil {
			continue
		}

		held = append(held, holder)
		t.holders[slot] = nil
		t.generations[slot]++
		t.free = append(t.free, uint32(slot))
	}

	if len(held) > 0 {
		t.notFull.Broadcast()
	}

	return held
}

func (t *ticketTable) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.notFull.Broadcast()
}
