package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
	jitterWindow       = 50 * time.Millisecond
)

// Executor wraps operations with bounded retry on transient failures.
// Classification is taken from the typed error metadata set by the transport
// layer; permanent errors propagate on first occurrence. The executor never
// inspects or alters an operation's result.
type Executor struct {
	maxAttempts uint64
	baseDelay   time.Duration
	maxDelay    time.Duration
	logg        *logger.Logger
	metrics     *metrics.CartMetrics
}

// NewExecutor builds an executor from retry configuration; zero or negative
// settings fall back to defaults.
func NewExecutor(cfg config.RetryConfig, logg *logger.Logger, cartMetrics *metrics.CartMetrics) (*Executor, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := cfg.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}
	return &Executor{
		maxAttempts: uint64(attempts),
		baseDelay:   base,
		maxDelay:    max,
		logg:        logg,
		metrics:     cartMetrics,
	}, nil
}

// Do invokes op, retrying transient failures with capped fibonacci backoff
// and jitter. After the attempt budget is exhausted the last error is
// returned as-is.
func (e *Executor) Do(ctx context.Context, operation string, op func(context.Context) error) error {
	backoff := retry.NewFibonacci(e.baseDelay)
	backoff = retry.WithJitter(jitterWindow, backoff)
	backoff = retry.WithCappedDuration(e.maxDelay, backoff)
	backoff = retry.WithMaxRetries(e.maxAttempts-1, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !pkgerrors.IsRetryable(err) {
			return err
		}
		if attempt < int(e.maxAttempts) {
			e.metrics.IncRetry(operation)
			logCtx := e.logg.WithFields(ctx, map[string]any{
				"operation": operation,
				"attempt":   attempt,
			})
			e.logg.Warn(logCtx, "transient failure, retrying")
		}
		return retry.RetryableError(err)
	})
}
