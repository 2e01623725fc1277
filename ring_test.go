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
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/pawelgaczynski/urio"
	"github.com/pawelgaczynski/urio/pkg/errors"
	. "github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), "urio")
	NoError(t, err)
	t.Cleanup(func() {
		NoError(t, file.Close())
	})

	return file
}

func TestNop(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	completion, err := ring.Nop()
	NoError(t, err)

	res, err := completion.Wait()
	NoError(t, err)
	Equal(t, int32(0), res)
	Equal(t, 0, ring.InFlight())
}

func TestWriteReadLinked(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	file := tempFile(t)

	written := make([]byte, 4096)
	for i := range written {
		written[i] = 42
	}

	writeCompletion, err := ring.WriteOrdered(int(file.Fd()), written, 0, urio.Link)
	NoError(t, err)

	read := make([]byte, 4096)
	readCompletion, err := ring.Read(int(file.Fd()), read, 0)
	NoError(t, err)

	res, err := writeCompletion.Wait()
	NoError(t, err)
	Equal(t, int32(4096), res)

	res, err = readCompletion.Wait()
	NoError(t, err)
	Equal(t, int32(4096), res)
	Equal(t, written, read)
}

func TestLinkShortCircuit(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	file := tempFile(t)

	// a linked read against an empty file is short, severing the chain
	buffer := make([]byte, 4096)
	readCompletion, err := ring.ReadOrdered(int(file.Fd()), buffer, 0, urio.Link)
	NoError(t, err)

	nopCompletion, err := ring.Nop()
	NoError(t, err)

	res, err := readCompletion.Wait()
	NoError(t, err)
	Equal(t, int32(0), res)

	_, err = nopCompletion.Wait()
	ErrorIs(t, err, syscall.ECANCELED)
}

func TestBackpressureAtDepth(t *testing.T) {
	ring, err := urio.NewRingWith(urio.WithDepth(8))
	NoError(t, err)
	defer ring.Close()

	quota := ring.MaxInFlight()

	var pipeFds [2]int
	NoError(t, syscall.Pipe(pipeFds[:]))
	defer syscall.Close(pipeFds[0])
	defer syscall.Close(pipeFds[1])

	// fill the whole quota with reads that cannot complete yet
	completions := make([]*urio.Completion, 0, quota)
	buffers := make([][]byte, quota)
	for i := 0; i < quota; i++ {
		buffers[i] = make([]byte, 1)
		completion, readErr := ring.Read(pipeFds[0], buffers[i], 0)
		NoError(t, readErr)
		completions = append(completions, completion)
	}
	NoError(t, ring.SubmitAll())
	Equal(t, quota, ring.InFlight())

	// the quota+1st submission must park until a ticket frees up
	extraReady := make(chan *urio.Completion)
	go func() {
		buffer := make([]byte, 1)
		completion, extraErr := ring.Read(pipeFds[0], buffer, 0)
		NoError(t, extraErr)
		extraReady <- completion
	}()

	select {
	case <-extraReady:
		t.Fatal("submission beyond the in-flight quota did not block")
	case <-time.After(100 * time.Millisecond):
	}

	// completing one read releases exactly one ticket
	_, err = syscall.Write(pipeFds[1], []byte{1})
	NoError(t, err)

	var extra *urio.Completion
	select {
	case extra = <-extraReady:
	case <-time.After(2 * time.Second):
		t.Fatal("submission was not unblocked by a completion")
	}

	// drain everything
	payload := make([]byte, quota+1)
	_, err = syscall.Write(pipeFds[1], payload)
	NoError(t, err)

	for _, completion := range completions {
		res, waitErr := completion.Wait()
		NoError(t, waitErr)
		Equal(t, int32(1), res)
	}
	res, err := extra.Wait()
	NoError(t, err)
	Equal(t, int32(1), res)
	Equal(t, 0, ring.InFlight())
}

func TestConcurrentFsyncs(t *testing.T) {
	ring, err := urio.NewRingWith(urio.WithDepth(64))
	NoError(t, err)
	defer ring.Close()

	file := tempFile(t)

	const (
		submitters         = 8
		fsyncsPerSubmitter = 1024
	)

	quota := ring.MaxInFlight()
	stopWatching := make(chan struct{})
	var overflowed atomic.Bool
	go func() {
		for {
			select {
			case <-stopWatching:
				return
			default:
				if ring.InFlight() > quota {
					overflowed.Store(true)
				}
			}
		}
	}()

	var successes atomic.Int64
	var waitGroup sync.WaitGroup
	for i := 0; i < submitters; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for j := 0; j < fsyncsPerSubmitter; j++ {
				completion, fsyncErr := ring.Fsync(int(file.Fd()))
				NoError(t, fsyncErr)
				_, waitErr := completion.Wait()
				NoError(t, waitErr)
				successes.Add(1)
			}
		}()
	}
	waitGroup.Wait()
	close(stopWatching)

	Equal(t, int64(submitters*fsyncsPerSubmitter), successes.Load())
	False(t, overflowed.Load())
	Equal(t, 0, ring.InFlight())
}

func TestDiscardBlocksUntilReady(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	var pipeFds [2]int
	NoError(t, syscall.Pipe(pipeFds[:]))
	defer syscall.Close(pipeFds[0])
	defer syscall.Close(pipeFds[1])

	buffer := make([]byte, 1)
	completion, err := ring.Read(pipeFds[0], buffer, 0)
	NoError(t, err)
	NoError(t, ring.SubmitAll())

	const delay = 100 * time.Millisecond
	go func() {
		time.Sleep(delay)
		_, writeErr := syscall.Write(pipeFds[1], []byte{1})
		NoError(t, writeErr)
	}()

	start := time.Now()
	completion.Discard()
	GreaterOrEqual(t, time.Since(start), delay)
	True(t, completion.Done())
	Equal(t, 0, ring.InFlight())
}

func TestSubmitErrors(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	_, err = ring.Read(0, nil, 0)
	ErrorIs(t, err, errors.ErrEmptyBuffer)

	_, err = ring.Write(0, []byte{}, 0)
	ErrorIs(t, err, errors.ErrEmptyBuffer)

	_, err = ring.Fsync(-1)
	ErrorIs(t, err, errors.ErrInvalidDescriptor)

	_, err = ring.Recv(-3, make([]byte, 1))
	ErrorIs(t, err, errors.ErrInvalidDescriptor)
}

func TestSubmitAfterClose(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	NoError(t, ring.Close())

	_, err = ring.Nop()
	ErrorIs(t, err, errors.ErrRingClosed)
}

func TestLazyReaper(t *testing.T) {
	ring, err := urio.NewRingWith(urio.WithLazyReaper(true))
	NoError(t, err)
	defer ring.Close()

	file := tempFile(t)

	written := []byte("hello urio")
	writeCompletion, err := ring.WriteOrdered(int(file.Fd()), written, 0, urio.Link)
	NoError(t, err)

	read := make([]byte, len(written))
	readCompletion, err := ring.Read(int(file.Fd()), read, 0)
	NoError(t, err)

	res, err := writeCompletion.Wait()
	NoError(t, err)
	Equal(t, int32(len(written)), res)

	res, err = readCompletion.Wait()
	NoError(t, err)
	Equal(t, int32(len(written)), res)
	Equal(t, written, read)
}

func TestWaitConsumesOnce(t *testing.T) {
	ring, err := urio.NewRing()
	NoError(t, err)
	defer ring.Close()

	completion, err := ring.Nop()
	NoError(t, err)

	_, err = completion.Wait()
	NoError(t, err)

	_, err = completion.Wait()
	ErrorIs(t, err, errors.ErrCompletionConsumed)
}
