package retry

import (
	"context"
	"errors"
	"time"

	"ai-chatbot-be/pkg/errs"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures retries of transient external failures.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy retries up to 4 attempts starting at 200ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Do runs op until it succeeds, fails permanently or the attempt budget is spent.
// Only errors classified as transient by errs.IsTransient are retried.
// notify may be nil; it is called before every wait.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify func(err error, wait time.Duration)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var lastErr error
	operation := func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errs.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		if ra := retryAfter(err); ra > 0 {
			return v, backoff.RetryAfter(int(ra.Seconds()))
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(attempts),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}
	v, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		// Hand back the caller's error rather than the backoff wrappers.
		var permanent *backoff.PermanentError
		var after *backoff.RetryAfterError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		} else if errors.As(err, &after) && lastErr != nil {
			err = lastErr
		}
	}
	return v, err
}

func retryAfter(err error) time.Duration {
	var se *errs.ServiceError
	if errors.As(err, &se) && se.RetryAfter >= time.Second {
		return se.RetryAfter
	}
	return 0
}
