package executors

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// RetryPolicy configures the WithRetry wrapper. Backoff is one of
// "constant", "linear", or "exponential" (default constant).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     string
}

// WithRetry wraps an executor with attempt-level retries. The scheduler
// itself never retries; retry policy belongs to the executor.
func WithRetry(inner Executor, policy RetryPolicy) Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryExecutor{inner: inner, policy: policy}
}

type retryExecutor struct {
	inner  Executor
	policy RetryPolicy
}

func (e *retryExecutor) Name() string        { return e.inner.Name() }
func (e *retryExecutor) Description() string { return e.inner.Description() }

func (e *retryExecutor) Execute(ctx context.Context, input Input) (*Output, error) {
	var lastErr error
	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := waitForBackoff(ctx, computeBackoff(e.policy, attempt)); err != nil {
				return nil, schema.NewError(schema.ErrCodeCancelled, "retry wait interrupted").WithCause(err)
			}
		}
		out, err := e.inner.Execute(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

// isRetryable classifies whether an error is worth retrying.
// Validation errors and cancellation are not; network errors and timeouts are.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var fe *schema.FlowError
	if errors.As(err, &fe) {
		switch fe.Code {
		case schema.ErrCodeValidation, schema.ErrCodeCancelled, schema.ErrCodeNotFound, schema.ErrCodeExecutorNotFound:
			return false
		case schema.ErrCodeTimeout:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return true
}

// computeBackoff calculates the delay before the given retry attempt.
func computeBackoff(policy RetryPolicy, attempt int) time.Duration {
	if policy.Delay <= 0 {
		return 0
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		delay = policy.Delay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
	case "linear":
		delay = policy.Delay * time.Duration(attempt)
	default: // constant
		delay = policy.Delay
	}

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// waitForBackoff sleeps for the delay or returns early on cancellation.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
