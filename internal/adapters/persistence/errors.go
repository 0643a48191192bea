package persistence

import "errors"

// Errors returned by persisters and the write-behind queue.
var (
	ErrClosed        = errors.New("persister closed")
	ErrQueueFull     = errors.New("write-behind queue full")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrWritesDropped = errors.New("write-behind dropped writes")
)
