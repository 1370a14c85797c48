package providers

import (
	"context"
	"errors"

	"github.com/dshills/scribe/internal/retry"
)

type rateLimitError struct{}

func (e *rateLimitError) Error() string { return "rate limited" }

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string { return "server error: " + e.body }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

func isRetryable(err error) bool {
	var rl *rateLimitError
	var se *serverError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// retryPolicy governs every provider call; tests shorten its delays.
var retryPolicy = func() retry.Policy {
	p := retry.DefaultPolicy()
	p.Retryable = isRetryable
	return p
}()

func withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, retryPolicy, fn)
}
