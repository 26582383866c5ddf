package pipeline

import (
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dgallion1/docground/internal/extract"
)

// MaxAttempts bounds the calls made for one extraction request.
const MaxAttempts = 3

// IsRetryable checks if an extraction error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff is the delay schedule between extraction attempts: exponential
// from one second, capped at 30s, with 25% jitter. Backoffs are stateful,
// so every call gets a new one.
func Backoff() retry.Backoff {
	b := retry.NewExponential(time.Second)
	b = retry.WithCappedDuration(30*time.Second, b)
	return retry.WithJitterPercent(25, b)
}
