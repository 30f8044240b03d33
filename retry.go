package deviceagent

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a single attempt of one device operation.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of times a failed attempt is repeated.
	DefaultRetries = 3
)

var retryDelay = 1 * time.Second

// OpOptions carries per-call overrides of the session's timeout/retry
// defaults. The zero value means "use the session default" for both.
type OpOptions struct {
	Timeout time.Duration
	Retries *int
}

// Retries returns an OpOptions overriding only the retry count.
func Retries(n int) OpOptions { return OpOptions{Retries: &n} }

func (d *Device) resolveOp(opts OpOptions) (time.Duration, int) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	retries := d.defaultRetries
	if opts.Retries != nil {
		retries = *opts.Retries
	}
	if retries < 0 {
		retries = 0
	}
	return timeout, retries
}

// withTimeoutRetry runs fn with a per-attempt timeout and a bounded number
// of retries. Command failures and invalid arguments are not retried; they
// are deterministic for a given device state. Timeouts and transport errors
// are retried with a constant delay.
func (d *Device) withTimeoutRetry(op string, timeout time.Duration, retries int, fn func() error) error {
	attempt := func() error {
		done := make(chan error, 1)
		go func() { done <- fn() }()
		select {
		case err := <-done:
			if err != nil && !retryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		case <-time.After(timeout):
			log.Warn().Str("serial", d.serial).Str("op", op).Dur("timeout", timeout).
				Msg("device operation timed out")
			return &TimeoutError{Serial: d.serial, Op: op, Timeout: timeout}
		}
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), uint64(retries))
	return backoff.Retry(attempt, policy)
}

func retryableError(err error) bool {
	if IsCommandFailed(err) || IsInvalidArgument(err) {
		return false
	}
	var pre *PreconditionError
	return !errors.As(err, &pre)
}

// PollConfig controls a busy-poll wait. The polled interface offers no
// event to block on, so condition checks are repeated at Interval until
// MaxAttempts is exhausted or ctx is done.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPoll is the poll cadence used by boot/reboot/charging waits.
var DefaultPoll = PollConfig{Interval: 1 * time.Second}

// WaitFor polls cond until it returns true. It fails with ctx.Err() on
// cancellation, or with a TimeoutError-free plain error once MaxAttempts
// checks have all come back false. MaxAttempts <= 0 polls until ctx is done.
func WaitFor(ctx context.Context, cfg PollConfig, cond func() bool) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPoll.Interval
	}
	attempts := 0
	for {
		if cond() {
			return nil
		}
		attempts++
		if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
			return errPollExhausted
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

var errPollExhausted = &pollExhaustedError{}

type pollExhaustedError struct{}

func (*pollExhaustedError) Error() string { return "condition not met within attempt budget" }
