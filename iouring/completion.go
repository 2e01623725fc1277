package iouring

import (
	"sync/atomic"
	"unsafe"
)

const (
	CQEFBuffer uint32 = 1 << iota
	CQEFMore
	CQEFSockNonempty
	CQEFNotif
)

// CompletionQueueEvent mirrors the kernel's io_uring_cqe layout, 16 bytes.
type CompletionQueueEvent struct {
	userData uint64
	res      int32
	flags    uint32
}

func (c *CompletionQueueEvent) UserData() uint64 {
	return c.userData
}

func (c *CompletionQueueEvent) Res() int32 {
	return c.res
}

func (c *CompletionQueueEvent) Flags() uint32 {
	return c.flags
}

// PeekBatchCQE copies pointers to ready completion events into cqes without
// consuming them. The caller advances the head with CQAdvance once the
// entries have been copied out.
func (ring *Ring) PeekBatchCQE(cqes []*CompletionQueueEvent) int {
	ready := atomic.LoadUint32(ring.cqRing.tail) - atomic.LoadUint32(ring.cqRing.head)
	count := len(cqes)
	if int(ready) < count {
		count = int(ready)
	}

	if ready != 0 {
		head := atomic.LoadUint32(ring.cqRing.head)
		mask := *ring.cqRing.ringMask
		last := head + uint32(count)

		for i := 0; head != last; head, i = head+1, i+1 {
			cqes[i] = (*CompletionQueueEvent)(
				unsafe.Add(
					unsafe.Pointer(ring.cqRing.cqeBuff),
					uintptr(head&mask)*unsafe.Sizeof(CompletionQueueEvent{}),
				),
			)
		}
	}

	return count
}

// CQReady reports how many completions are waiting to be consumed.
func (ring *Ring) CQReady() uint32 {
	return atomic.LoadUint32(ring.cqRing.tail) - atomic.LoadUint32(ring.cqRing.head)
}

// CQAdvance publishes consumption of nr completion events.
func (ring *Ring) CQAdvance(nr uint32) {
	atomic.StoreUint32(ring.cqRing.head, *ring.cqRing.head+nr)
}

func (ring *Ring) CQOverflow() uint32 {
	return atomic.LoadUint32(ring.cqRing.overflow)
}

// WaitCQE blocks until at least one completion is available and returns a
// pointer to it without consuming it. Call CQESeen afterwards.
func (ring *Ring) WaitCQE() (*CompletionQueueEvent, error) {
	cqes := make([]*CompletionQueueEvent, 1)

	for {
		if ring.PeekBatchCQE(cqes) > 0 {
			return cqes[0], nil
		}

		err := ring.EnterWait(1)
		if err != nil {
			return nil, err
		}
	}
}

func (ring *Ring) CQESeen(event *CompletionQueueEvent) {
	if event != nil {
		ring.CQAdvance(1)
	}
}
