package retry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

func newTestExecutor(t *testing.T, attempts int) *Executor {
	t.Helper()
	exec, err := NewExecutor(config.RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return exec
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, 3)
	calls := 0
	err := exec.Do(context.Background(), "add", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, 3)
	calls := 0
	err := exec.Do(context.Background(), "update", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return pkgerrors.New(pkgerrors.CodeNetwork, "connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, 3)
	calls := 0
	rejected := pkgerrors.New(pkgerrors.CodeServerRejected, "out of stock")
	err := exec.Do(context.Background(), "add", func(ctx context.Context) error {
		calls++
		return rejected
	})
	if calls != 1 {
		t.Fatalf("permanent error must not be retried, got %d attempts", calls)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeServerRejected {
		t.Fatalf("expected server rejection to propagate, got %v", err)
	}
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, 3)
	calls := 0
	err := exec.Do(context.Background(), "clear", func(ctx context.Context) error {
		calls++
		return pkgerrors.New(pkgerrors.CodeTimeout, "deadline exceeded")
	})
	if calls != 3 {
		t.Fatalf("expected attempt budget of 3, got %d", calls)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTimeout {
		t.Fatalf("expected last timeout error, got %v", err)
	}
}

func TestDoDoesNotRetryUntypedErrors(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, 3)
	calls := 0
	boom := errors.New("boom")
	err := exec.Do(context.Background(), "remove", func(ctx context.Context) error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Fatalf("untyped errors must not be retried, got %d attempts", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
}

func TestNewExecutorRequiresLogger(t *testing.T) {
	t.Parallel()

	if _, err := NewExecutor(config.RetryConfig{}, nil, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}
