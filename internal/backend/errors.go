package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConnectionLost reports that a handle's connection is no longer usable.
// Workers treat it as fatal instead of retrying.
var ErrConnectionLost = errors.New("connection lost")

// ConnectionError reports a connection that could not be opened or was
// lost while in use.
type ConnectionError struct {
	// Role is "primary" or "replica".
	Role string

	// Label identifies the handle.
	Label string

	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection %q: %v", e.Role, e.Label, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// OperationError reports a single failed read or write.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a single call that exceeded its per-call bound.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// Is matches context.DeadlineExceeded so callers can use either form.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// Classify wraps a raw error from a backend call made under a context with
// the given per-call timeout. It returns nil for nil, a *TimeoutError when
// the call's own deadline expired, err unchanged when it already signals a
// lost connection, and an *OperationError otherwise.
func Classify(ctx context.Context, op string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionLost) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: timeout}
	}
	return &OperationError{Op: op, Err: err}
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
