package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("import queue full")
	ErrClosed = errors.New("import queue closed")
)
