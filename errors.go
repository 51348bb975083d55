package eventbus

import (
	"errors"
	"fmt"
	"time"
)

// Contract violations. These are the only errors Publish and Subscribe return;
// handler failures are recorded in the statistics and never reach the caller.
var (
	// ErrEmptyEventType is returned when an event or subscription has no type.
	ErrEmptyEventType = errors.New("event type is empty")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler is nil")

	// ErrBusClosed is returned when publishing or subscribing on a closed bus.
	ErrBusClosed = errors.New("bus is closed")
)

// ErrHandlerTimeout indicates that a handler did not finish within its timeout.
// It is recorded as a handler failure.
var ErrHandlerTimeout = errors.New("handler timed out")

// IsContractViolation reports whether err was caused by misuse of the bus
// rather than by a handler.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrEmptyEventType) ||
		errors.Is(err, ErrNilHandler) ||
		errors.Is(err, ErrBusClosed)
}

// HandlerError describes one failed handler invocation.
type HandlerError struct {
	EventType      string
	EventID        string
	Handler        string
	SubscriptionID string
	Duration       time.Duration
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed for event %s (%s): %v", e.Handler, e.EventType, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// IsPanic checks if an error was produced by a recovered handler panic.
func IsPanic(err error) bool {
	var panicErr *PanicError
	return errors.As(err, &panicErr)
}

// IsTimeout checks if an error indicates a handler timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrHandlerTimeout)
}
