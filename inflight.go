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
	"unsafe"

	"golang.org/x/sys/unix"
)

// inFlightSlot pins everything the kernel may touch during one operation's
// pending window: the caller's buffer, the iovec describing it and, for
// socket operations, the sockaddr storage. Slots are indexed by ticket slot,
// so a slot is never reused while its operation is outstanding.
type inFlightSlot struct {
	iovec   unix.Iovec
	rsa     unix.RawSockaddrAny
	rsaLen  uint32
	buffer  []byte
}

type inFlight struct {
	slots []inFlightSlot
}

func newInFlight(size uint32) *inFlight {
	return &inFlight{
		slots: make([]inFlightSlot, size),
	}
}

// installIovec pins the buffer and returns the address of the slot's iovec
// for READV/WRITEV entries.
func (f *inFlight) installIovec(slot uint32, buffer []byte) uint64 {
	s := &f.slots[slot]
	s.buffer = buffer
	s.iovec.Base = &buffer[0]
	s.iovec.SetLen(len(buffer))

	return uint64(uintptr(unsafe.Pointer(&s.iovec)))
}

// installBuffer pins the buffer and returns its base address for SEND/RECV
// entries.
func (f *inFlight) installBuffer(slot uint32, buffer []byte) uint64 {
	f.slots[slot].buffer = buffer

	return uint64(uintptr(unsafe.Pointer(&buffer[0])))
}

// acceptSockaddr resets the slot's sockaddr storage and returns the address
// pair an ACCEPT entry wants: sockaddr pointer and a pointer to its length.
func (f *inFlight) acceptSockaddr(slot uint32) (uint64, uint64) {
	s := &f.slots[slot]
	s.rsa = unix.RawSockaddrAny{}
	s.rsaLen = unix.SizeofSockaddrAny

	return uint64(uintptr(unsafe.Pointer(&s.rsa))), uint64(uintptr(unsafe.Pointer(&s.rsaLen)))
}

// connectSockaddr encodes the destination into the slot's sockaddr storage
// and returns its address and encoded length for a CONNECT entry.
func (f *inFlight) connectSockaddr(slot uint32, rsa unix.RawSockaddrAny, length uint32) uint64 {
	s := &f.slots[slot]
	s.rsa = rsa
	s.rsaLen = length

	return uint64(uintptr(unsafe.Pointer(&s.rsa)))
}

// clear drops the slot's pins. Only legal once the kernel has reported the
// operation's completion.
func (f *inFlight) clear(slot uint32) {
	f.slots[slot] = inFlightSlot{}
}
