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
	"errors"
	"os"
	"syscall"
	"unsafe"
)

const (
	SetupIOPoll uint32 = 1 << iota
	SetupSQPoll
	SetupSQAff
	SetupCQSize
	SetupClamp
	SetupAttachWQ
	SetupRDisabled
	SetupSubmitAll
	SetupCoopTaskrun
	SetupTaskrunFlag
	SetupSQE128
	SetupCQE32
	SetupSingleIssuer
	SetupDeferTaskrun
)

const (
	FeatSingleMMap uint32 = 1 << iota
	FeatNoDrop
	FeatSubmitStable
	FeatRWCurPos
	FeatCurPersonality
	FeatFastPoll
	FeatPoll32Bits
	FeatSQPollNonfixed
	FeatExtArg
	FeatNativeWorkers
	FeatRcrcTags
	FeatCQESkip
	FeatLinkedFile
)

type SQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	resv2       uint64
}

type CQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	resv2       uint64
}

type Params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFD         uint32
	resv         [3]uint32

	sqOff SQRingOffsets
	cqOff CQRingOffsets
}

// ErrNotEnoughLockableMemory is returned when io_uring_setup fails with
// ENOMEM. The ring memory is accounted against RLIMIT_MEMLOCK, which often
// defaults to a very low number.
var ErrNotEnoughLockableMemory = errors.New(
	"not enough lockable memory, raise the memlock rlimit")

func (ring *Ring) queueInitParams(entries uint) error {
	fd, _, errno := syscall.Syscall(sysSetup, uintptr(entries), uintptr(unsafe.Pointer(ring.params)), 0)
	if errno != 0 {
		if errno == syscall.ENOMEM {
			return ErrNotEnoughLockableMemory
		}

		return os.NewSyscallError("io_uring_setup", errno)
	}

	fileDescriptor := int(fd)

	err := ring.mmap(fileDescriptor)
	if err != nil {
		return err
	}

	ring.features = ring.params.features
	ring.fd = fileDescriptor
	ring.flags = ring.params.flags

	return nil
}

// QueueInit performs the setup syscall and maps the shared rings.
func (ring *Ring) QueueInit(entries uint, flags uint32) error {
	ring.params.flags = flags

	return ring.queueInitParams(entries)
}

func (ring *Ring) Close() error {
	if ring.fd != 0 {
		return os.NewSyscallError("close", syscall.Close(ring.fd))
	}

	return nil
}

// QueueExit unmaps the rings and closes the ring file descriptor.
// In-flight operations must have been drained before calling this.
func (ring *Ring) QueueExit() error {
	ring.exited = true

	err := ring.munmapSQEs()
	if err != nil {
		return err
	}

	err = ring.UnmapRings()
	if err != nil {
		return err
	}

	return ring.Close()
}
