package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy retries upstream calls that failed with a transient HTTP status.
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first.
	Retries int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// IsTransient reports whether err is an HTTP 500 or 503 response.
func IsTransient(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusInternalServerError || se.Code == http.StatusServiceUnavailable
}

// Do calls fn until it succeeds, fails with a non-transient error, or the retries are used up.
// The error of the last attempt is returned.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, fn func(context.Context) error) error {
	attempts := p.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts {
			break
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Dur("delay", p.Delay).
			Msg("transient upstream failure, retrying")

		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
