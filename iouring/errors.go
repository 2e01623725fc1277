package iouring

import (
	"errors"
	"fmt"
)

var (
	ErrTimerExpired       = errors.New("timer expired")
	ErrInterrupredSyscall = errors.New("interrupred system call")
	ErrAgain              = errors.New("try again")
	ErrNotSupported       = errors.New("not supported")
	ErrSQOverflow         = errors.New("submission queue overflow")
)

func ErrorSQEOverflow(used uint32) error {
	return fmt.Errorf("%w, used entries: %d", ErrSQOverflow, used)
}
