package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// callState drives the retry loop around every service call.
type callState int

const (
	stateAttempting callState = iota
	stateBackingOff
	stateReauthenticating
	stateExhausted
)

// call executes fn, masking the two transient failure classes. Rate-limit
// failures sleep for the service-advertised duration (or the default backoff,
// doubled per attempt) and retry up to the attempt budget. An expired token
// triggers one transparent refresh and a retry of the same call. Anything
// else propagates after logging. Exhausting the budget fails Unrecoverable.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := c.baseBackoff
	attempts := 0
	refreshed := false

	var wait time.Duration
	var last *CallError

	state := stateAttempting
	for {
		switch state {
		case stateAttempting:
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			attempts++
			err := fn(ctx)
			if err == nil {
				return nil
			}

			var ce *CallError
			if !errors.As(err, &ce) {
				c.log.Error().Str("op", op).Err(err).Msg("spotify call failed")
				return &CallError{Kind: FailureUnrecoverable, Err: fmt.Errorf("%s: %w", op, err)}
			}
			last = ce

			switch ce.Kind {
			case FailureRateLimited:
				if attempts >= c.maxAttempts {
					state = stateExhausted
					break
				}
				wait = ce.RetryAfter
				if wait <= 0 {
					wait = backoff
				}
				backoff *= 2
				c.log.Warn().Str("op", op).Dur("wait", wait).Int("attempt", attempts).
					Msg("rate limited, backing off")
				state = stateBackingOff
			case FailureAuthExpired:
				if refreshed {
					c.log.Error().Str("op", op).Msg("token rejected again after refresh")
					return ce
				}
				refreshed = true
				state = stateReauthenticating
			default:
				c.log.Error().Str("op", op).Err(ce).Msg("spotify call failed")
				return ce
			}

		case stateBackingOff:
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-timer.C:
			}
			state = stateAttempting

		case stateReauthenticating:
			c.log.Warn().Str("op", op).Msg("token expired, refreshing")
			if err := c.creds.Refresh(ctx); err != nil {
				return &CallError{Kind: FailureAuthExpired, Err: fmt.Errorf("%s: %w", op, err)}
			}
			state = stateAttempting

		case stateExhausted:
			return &CallError{
				Kind: FailureUnrecoverable,
				Err:  fmt.Errorf("%s: retry budget exhausted after %d attempts: %w", op, attempts, last),
			}
		}
	}
}
