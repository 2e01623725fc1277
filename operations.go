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
	"net"

	"github.com/pawelgaczynski/urio/iouring"
	"github.com/pawelgaczynski/urio/pkg/errors"
)

func validateBuffer(fd int, buffer []byte) error {
	if fd < 0 {
		return errors.ErrorInvalidDescriptor(fd)
	}
	if len(buffer) == 0 {
		return errors.ErrEmptyBuffer
	}

	return nil
}

// Nop submits an operation that does nothing. Useful for benchmarking and
// for flushing ordering barriers.
func (r *Ring) Nop() (*Completion, error) {
	return r.NopOrdered(None)
}

func (r *Ring) NopOrdered(ordering Ordering) (*Completion, error) {
	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, _ uint32) {
		sqe.PrepareNop()
	})
}

// Read reads into buffer from the file at the given offset. The buffer must
// be writable and remain untouched by the caller until the completion is
// ready; the ring pins it for that window. Check the returned byte count
// for short reads.
func (r *Ring) Read(fd int, buffer []byte, offset uint64) (*Completion, error) {
	return r.ReadOrdered(fd, buffer, offset, None)
}

func (r *Ring) ReadOrdered(fd int, buffer []byte, offset uint64, ordering Ordering) (*Completion, error) {
	if err := validateBuffer(fd, buffer); err != nil {
		return nil, err
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addr := r.inflight.installIovec(slot, buffer)
		sqe.PrepareReadv(fd, uintptr(addr), 1, offset)
	})
}

// Write writes buffer to the file at the given offset. The buffer is only
// read by the kernel; it is pinned until the completion is ready. Check the
// returned byte count for short writes.
func (r *Ring) Write(fd int, buffer []byte, offset uint64) (*Completion, error) {
	return r.WriteOrdered(fd, buffer, offset, None)
}

func (r *Ring) WriteOrdered(fd int, buffer []byte, offset uint64, ordering Ordering) (*Completion, error) {
	if err := validateBuffer(fd, buffer); err != nil {
		return nil, err
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addr := r.inflight.installIovec(slot, buffer)
		sqe.PrepareWritev(fd, uintptr(addr), 1, offset)
	})
}

// Fsync flushes buffered writes and associated metadata. io_uring executes
// operations out of order: link the fsync to a previous write, or use
// FsyncOrdered with Drain, to sync what was actually written.
func (r *Ring) Fsync(fd int) (*Completion, error) {
	return r.FsyncOrdered(fd, None)
}

func (r *Ring) FsyncOrdered(fd int, ordering Ordering) (*Completion, error) {
	if fd < 0 {
		return nil, errors.ErrorInvalidDescriptor(fd)
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, _ uint32) {
		sqe.PrepareFsync(fd, 0)
	})
}

// Fdatasync flushes buffered writes and only the metadata required to
// access them.
func (r *Ring) Fdatasync(fd int) (*Completion, error) {
	return r.FdatasyncOrdered(fd, None)
}

func (r *Ring) FdatasyncOrdered(fd int, ordering Ordering) (*Completion, error) {
	if fd < 0 {
		return nil, errors.ErrorInvalidDescriptor(fd)
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, _ uint32) {
		sqe.PrepareFdatasync(fd)
	})
}

// Accept accepts one connection on a listening socket. The completion's
// result is the connected socket's file descriptor.
func (r *Ring) Accept(listenerFd int) (*Completion, error) {
	return r.AcceptOrdered(listenerFd, None)
}

func (r *Ring) AcceptOrdered(listenerFd int, ordering Ordering) (*Completion, error) {
	if listenerFd < 0 {
		return nil, errors.ErrorInvalidDescriptor(listenerFd)
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addr, addrLen := r.inflight.acceptSockaddr(slot)
		sqe.PrepareAccept(listenerFd, uintptr(addr), addrLen, 0)
	})
}

// Connect starts a connection to a TCP or UDP endpoint. Any non-negative
// result means the connection is established.
func (r *Ring) Connect(fd int, addr net.Addr) (*Completion, error) {
	return r.ConnectOrdered(fd, addr, None)
}

func (r *Ring) ConnectOrdered(fd int, addr net.Addr, ordering Ordering) (*Completion, error) {
	if fd < 0 {
		return nil, errors.ErrorInvalidDescriptor(fd)
	}

	ip, port, err := addrEndpoint(addr)
	if err != nil {
		return nil, err
	}

	rsa, rsaLen, err := encodeSockaddr(ip, port)
	if err != nil {
		return nil, err
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addrPtr := r.inflight.connectSockaddr(slot, rsa, rsaLen)
		sqe.PrepareConnect(fd, uintptr(addrPtr), uint64(rsaLen))
	})
}

// Send transmits buffer on a connected socket.
func (r *Ring) Send(fd int, buffer []byte) (*Completion, error) {
	return r.SendOrdered(fd, buffer, None)
}

func (r *Ring) SendOrdered(fd int, buffer []byte, ordering Ordering) (*Completion, error) {
	if err := validateBuffer(fd, buffer); err != nil {
		return nil, err
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addr := r.inflight.installBuffer(slot, buffer)
		sqe.PrepareSend(fd, uintptr(addr), uint32(len(buffer)), 0)
	})
}

// Recv receives into buffer from a connected socket. The buffer must be
// writable and stay untouched until the completion is ready.
func (r *Ring) Recv(fd int, buffer []byte) (*Completion, error) {
	return r.RecvOrdered(fd, buffer, None)
}

func (r *Ring) RecvOrdered(fd int, buffer []byte, ordering Ordering) (*Completion, error) {
	if err := validateBuffer(fd, buffer); err != nil {
		return nil, err
	}

	return r.prepare(ordering, func(sqe *iouring.SubmissionQueueEntry, slot uint32) {
		addr := r.inflight.installBuffer(slot, buffer)
		sqe.PrepareRecv(fd, uintptr(addr), uint32(len(buffer)), 0)
	})
}
