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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrRingClosed occurs when submitting to a ring after Close.
	ErrRingClosed = errors.New("ring closed")
	// ErrEmptyBuffer occurs when a read, write, send or recv is submitted with a nil or empty buffer.
	ErrEmptyBuffer = errors.New("buffer is nil or empty")
	// ErrInvalidDescriptor occurs when an operation is submitted with a negative file descriptor.
	ErrInvalidDescriptor = errors.New("invalid file descriptor")
	// ErrUnsupportedAddress occurs when connect is given an address family the ring cannot encode.
	ErrUnsupportedAddress = errors.New("unsupported address family")
	// ErrCompletionConsumed occurs when waiting on a completion whose result was already taken.
	ErrCompletionConsumed = errors.New("completion already consumed")
	// ErrStaleTicket occurs when the kernel reports a completion for a ticket generation
	// that has already been recycled. It indicates a double completion.
	ErrStaleTicket = errors.New("stale ticket generation")
	// ErrNotSupported occurs when not supported feature is used.
	ErrNotSupported = errors.New("not supported")
)

func ErrorInvalidDescriptor(fd int) error {
	return fmt.Errorf("%w, fd: %d", ErrInvalidDescriptor, fd)
}

func ErrorUnsupportedAddress(network string) error {
	return fmt.Errorf("%w, network: %s", ErrUnsupportedAddress, network)
}

func ErrorStaleTicket(ticket uint64) error {
	return fmt.Errorf("%w, ticket: %d", ErrStaleTicket, ticket)
}
