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

import (
	"sync/atomic"
	"unsafe"
)

const (
	SqeFixedFile uint8 = 1 << iota
	SqeIODrain
	SqeIOLink
	SqeIOHardlink
	SqeAsync
	SqeBufferSelect
	SqeCQESkipSuccess
)

const FsyncDatasync uint32 = 1 << 0

const (
	RecvsendPollFirst uint16 = 1 << iota
	RecvMultishot
	RecvsendFixedBuf
)

// SubmissionQueueEntry mirrors the kernel's io_uring_sqe layout, 64 bytes.
type SubmissionQueueEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64

	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	_pad2       [2]uint64
}

// GetSQE reserves the next free submission entry. The entry stays invisible
// to the kernel until FlushSQ publishes the tail. The caller must serialize
// GetSQE/FlushSQ pairs; the ring keeps a single application-side cursor.
func (ring *Ring) GetSQE() (*SubmissionQueueEntry, error) {
	head := atomic.LoadUint32(ring.sqRing.head)
	next := ring.sqRing.sqeTail + 1

	var entry *SubmissionQueueEntry

	if next-head <= *ring.sqRing.ringEntries {
		idx := ring.sqRing.sqeTail & *ring.sqRing.ringMask * uint32(unsafe.Sizeof(SubmissionQueueEntry{}))
		entry = (*SubmissionQueueEntry)(unsafe.Pointer(&ring.sqRing.sqeBuffer[idx]))
		ring.sqRing.sqeTail = next
	} else {
		return nil, ErrorSQEOverflow(next - head)
	}

	return entry, nil
}

// FlushSQ fills the kernel-visible index array for every reserved entry and
// publishes the new tail with a release store. Returns the number of entries
// the kernel has not consumed yet.
func (ring *Ring) FlushSQ() uint32 {
	mask := *ring.sqRing.ringMask
	tail := atomic.LoadUint32(ring.sqRing.tail)

	subCnt := ring.sqRing.sqeTail - ring.sqRing.sqeHead
	if subCnt == 0 {
		return tail - atomic.LoadUint32(ring.sqRing.head)
	}

	for i := subCnt; i > 0; i-- {
		*(*uint32)(
			unsafe.Add(unsafe.Pointer(ring.sqRing.array),
				tail&mask*uint32(unsafe.Sizeof(uint32(0))))) = ring.sqRing.sqeHead & mask
		tail++
		ring.sqRing.sqeHead++
	}
	atomic.StoreUint32(ring.sqRing.tail, tail)

	return tail - atomic.LoadUint32(ring.sqRing.head)
}

func (ring *Ring) sqRingNeedsEnter(flags *uint32) bool {
	if ring.flags&SetupSQPoll == 0 {
		return true
	}

	if atomic.LoadUint32(ring.sqRing.flags)&SQNeedWakeup > 0 {
		*flags |= EnterSQWakeup

		return true
	}

	return false
}

func (ring *Ring) submitInternal(submitted uint32, waitNr uint64) (uint, error) {
	var (
		flags uint32
		ret   uint
		err   error
	)

	if ring.sqRingNeedsEnter(&flags) || waitNr > 0 {
		if waitNr > 0 || (ring.flags&SetupIOPoll > 0) {
			flags |= EnterGetEvents
		}

		ret, err = ring.enter(submitted, uint32(waitNr), flags, nil)
	} else {
		ret = uint(submitted)
	}

	return ret, err
}

// SubmitAndWait flushes pending entries and waits for waitNr completions.
func (ring *Ring) SubmitAndWait(waitNr uint64) (uint, error) {
	return ring.submitInternal(ring.FlushSQ(), waitNr)
}

// Submit flushes pending entries to the kernel and returns the number of
// entries the enter syscall consumed.
func (ring *Ring) Submit() (uint, error) {
	return ring.SubmitAndWait(0)
}

func (ring *Ring) SQSpaceLeft() uint32 {
	return *ring.sqRing.ringEntries - ring.SQReady()
}

// SQReady reports how many entries are reserved but not yet consumed.
func (ring *Ring) SQReady() uint32 {
	head := *ring.sqRing.head
	if ring.flags&SetupSQPoll > 0 {
		head = atomic.LoadUint32(ring.sqRing.head)
	}

	return ring.sqRing.sqeTail - head
}
