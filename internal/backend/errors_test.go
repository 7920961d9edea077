package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name        string
		ctx         context.Context
		err         error
		wantNil     bool
		wantTimeout bool
		wantLost    bool
	}{
		{name: "nil", ctx: context.Background(), err: nil, wantNil: true},
		{name: "plain failure", ctx: context.Background(), err: errors.New("boom")},
		{name: "deadline error", ctx: context.Background(), err: context.DeadlineExceeded, wantTimeout: true},
		{name: "expired context", ctx: expired, err: errors.New("canceling statement"), wantTimeout: true},
		{name: "connection lost", ctx: context.Background(), err: fmt.Errorf("read: %w", ErrConnectionLost), wantLost: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.ctx, "top_performers", 5*time.Second, tt.err)
			if tt.wantNil {
				if err != nil {
					t.Errorf("Expected nil, got %v", err)
				}
				return
			}
			if IsTimeout(err) != tt.wantTimeout {
				t.Errorf("IsTimeout = %v, want %v (%v)", IsTimeout(err), tt.wantTimeout, err)
			}
			if errors.Is(err, ErrConnectionLost) != tt.wantLost {
				t.Errorf("connection lost = %v, want %v", errors.Is(err, ErrConnectionLost), tt.wantLost)
			}
			var opErr *OperationError
			if !tt.wantTimeout && !tt.wantLost && !errors.As(err, &opErr) {
				t.Errorf("Expected OperationError, got %T", err)
			}
		})
	}
}

func TestTimeoutErrorIsDeadlineExceeded(t *testing.T) {
	err := &TimeoutError{Op: "insert_trade", Timeout: time.Second}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should match context.DeadlineExceeded")
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	inner := errors.New("refused")
	err := &ConnectionError{Role: "replica", Label: "reader 1", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ConnectionError should unwrap to its cause")
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "nonexistent", Config{}); err == nil {
		t.Error("Expected error for unknown backend")
	}
	if _, err := Describe("nonexistent"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestRegistryRegister(t *testing.T) {
	Register("test-stub", "stub backend", func(ctx context.Context, cfg Config) (Backend, error) {
		return nil, errors.New("not openable")
	})

	desc, err := Describe("test-stub")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if desc != "stub backend" {
		t.Errorf("Expected 'stub backend', got '%s'", desc)
	}

	found := false
	for _, name := range List() {
		if name == "test-stub" {
			found = true
		}
	}
	if !found {
		t.Error("List should include registered backend")
	}

	if _, err := Open(context.Background(), "test-stub", Config{}); err == nil {
		t.Error("Expected factory error to propagate")
	}
}
