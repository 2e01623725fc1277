package iouring_test

import (
	"testing"

	"github.com/pawelgaczynski/urio/iouring"
	. "github.com/stretchr/testify/require"
)

func TestSubmitAndWait(t *testing.T) {
	ring, err := iouring.CreateDefaultRing()
	NoError(t, err)
	defer ring.QueueExit()

	cqeBuff := make([]*iouring.CompletionQueueEvent, 16)

	cnt := ring.PeekBatchCQE(cqeBuff)
	Equal(t, 0, cnt)

	for i := 0; i < 4; i++ {
		entry, sqeErr := ring.GetSQE()
		NoError(t, sqeErr)
		entry.PrepareNop()
		entry.UserData = uint64(i)
	}

	submitted, err := ring.SubmitAndWait(4)
	NoError(t, err)
	Equal(t, uint(4), submitted)

	cnt = ring.PeekBatchCQE(cqeBuff)
	Equal(t, 4, cnt)
	ring.CQAdvance(4)
}

func TestGetSQEOverflow(t *testing.T) {
	ring, err := iouring.CreateRing(2, 0)
	NoError(t, err)
	defer ring.QueueExit()

	_, err = ring.GetSQE()
	NoError(t, err)
	_, err = ring.GetSQE()
	NoError(t, err)

	_, err = ring.GetSQE()
	ErrorIs(t, err, iouring.ErrSQOverflow)

	Equal(t, uint32(0), ring.SQSpaceLeft())
}
