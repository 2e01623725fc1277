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

package iouring

const (
	SQNeedWakeup uint32 = 1 << iota
	SQCQOverflow
	SQTaskrun
)

// SubmissionQueue holds the mapped SQ ring metadata, the SQE array and the
// application-side sqeHead/sqeTail cursor pair. The pointers alias kernel
// shared memory; head and tail must only be touched through sync/atomic.
type SubmissionQueue struct {
	buffer    []byte
	sqeBuffer []byte
	ringSize  uint64

	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32

	sqeTail uint32
	sqeHead uint32
}

// CompletionQueue is written by the kernel and consumed here.
type CompletionQueue struct {
	buffer   []byte
	ringSize uint64

	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	overflow    *uint32

	cqeBuff *CompletionQueueEvent
}

type Ring struct {
	sqRing   *SubmissionQueue
	cqRing   *CompletionQueue
	flags    uint32
	fd       int
	features uint32
	params   *Params

	exited bool
}

func (ring *Ring) Fd() int {
	return ring.fd
}

// SQEntries reports the submission queue depth chosen by the kernel.
func (ring *Ring) SQEntries() uint32 {
	return ring.params.sqEntries
}

// CQEntries reports the completion queue depth chosen by the kernel.
// This bounds the number of operations that may be in flight at once.
func (ring *Ring) CQEntries() uint32 {
	return ring.params.cqEntries
}

func (ring *Ring) Flags() uint32 {
	return ring.flags
}

func newRing() *Ring {
	return &Ring{
		params: &Params{},
		sqRing: &SubmissionQueue{},
		cqRing: &CompletionQueue{},
	}
}

// CreateRing sets up a ring with the given SQ depth and setup flags.
// Entries must be a power of two; the kernel rejects anything else
// unless SetupClamp is passed.
func CreateRing(entries uint, flags uint32) (*Ring, error) {
	ring := newRing()

	err := ring.QueueInit(entries, flags)
	if err != nil {
		return nil, err
	}

	return ring, nil
}

// CreateDefaultRing sets up a ring with the default queue depth.
func CreateDefaultRing() (*Ring, error) {
	return CreateRing(defaultMaxQueue, 0)
}
