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

package urio_test

import (
	"errors"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/pawelgaczynski/urio"
	. "github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const blockSize = 4096

// alignedBlock carves a block-aligned slice out of an oversized allocation,
// as O_DIRECT transfers require.
func alignedBlock(size int) []byte {
	raw := make([]byte, size+blockSize)
	offset := blockSize - int(uintptr(unsafe.Pointer(&raw[0]))&(blockSize-1))
	if offset == blockSize {
		offset = 0
	}

	return raw[offset : offset+size]
}

func TestODirectWriteReadLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odirect")

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_DIRECT, 0o644)
	if err != nil {
		t.Skipf("O_DIRECT unsupported here: %v", err)
	}
	defer unix.Close(fd)

	ring, err := urio.NewRingWith(urio.WithDepth(64))
	NoError(t, err)
	defer ring.Close()

	const iterations = 128

	pattern := alignedBlock(blockSize)
	for i := range pattern {
		pattern[i] = 42
	}

	cancelledReads := 0
	shortWrites := 0

	for i := 0; i < iterations; i++ {
		offset := uint64(i) * blockSize

		writeCompletion, writeErr := ring.WriteOrdered(fd, pattern, offset, urio.Link)
		NoError(t, writeErr)

		readBuffer := alignedBlock(blockSize)
		readCompletion, readErr := ring.Read(fd, readBuffer, offset)
		NoError(t, readErr)

		written, writeWaitErr := writeCompletion.Wait()
		if writeWaitErr != nil || written != blockSize {
			shortWrites++
		}

		_, readWaitErr := readCompletion.Wait()
		if errors.Is(readWaitErr, unix.ECANCELED) {
			cancelledReads++

			continue
		}
		NoError(t, readWaitErr)
		Equal(t, pattern, readBuffer)
	}

	Equal(t, shortWrites, cancelledReads)
	Equal(t, 0, shortWrites)
}
