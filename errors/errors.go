package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles  = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrFatal              = fmt.Errorf("fatal relay failure")
	ErrTransport          = fmt.Errorf("transport error")
	ErrEventChannelClosed = fmt.Errorf("event channel closed")
	ErrQueueFull          = fmt.Errorf("event queue is full")
	ErrInvalidMode        = fmt.Errorf("exactly one of server or client mode must be selected")
	ErrNilConnection      = fmt.Errorf("connection is nil")
)

// Fatal marks err so the supervisor stops the whole relay instead of restarting the worker.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// Is and As shadow the standard library so callers importing this package keep a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
