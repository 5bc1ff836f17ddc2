package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmpty     = errors.New("buffer holds no transitions")
	errBatchSize = errors.New("batch size must be positive")
)

// SampleError reports a request for a batch that an Offline buffer
// cannot serve.
type SampleError struct {
	Op       string
	Size     int
	Capacity int
	Err      error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("%v: batch of %v from %v transitions: %v", e.Op,
		e.Size, e.Capacity, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

// IsEmptyBuffer reports whether err was caused by sampling from a
// buffer without transitions.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmpty)
}

// IsInvalidBatchSize reports whether err was caused by requesting a
// batch of non-positive size.
func IsInvalidBatchSize(err error) bool {
	return errors.Is(err, errBatchSize)
}
