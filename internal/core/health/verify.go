package health

import (
	"context"
	"fmt"
	"time"
)

// Checker issues a single synchronous request to a health endpoint.
// It returns StatusUnreachable with a non-nil error when no response arrives.
type Checker interface {
	Check(ctx context.Context, endpoint string) (status int, err error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, endpoint string) (int, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, endpoint string) (int, error) {
	return f(ctx, endpoint)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Verifier runs the bounded-retry polling loop.
type Verifier struct {
	Checker Checker
	Sleeper Sleeper

	// Now stamps attempts. Default: time.Now.
	Now func() time.Time

	// OnAttempt, if set, observes each attempt as soon as it is classified.
	OnAttempt func(Attempt)
}

// Verify polls cfg.Endpoint until it returns ExpectedStatus or
// cfg.MaxAttempts attempts have been made.
//
// The first attempt is immediate; each later attempt follows a sleep of
// exactly cfg.Interval. There is no backoff. An invalid config fails before
// any attempt is made or any time is spent.
func (v Verifier) Verify(ctx context.Context, cfg Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Succeeded: false, Err: err}
	}

	now := v.Now
	if now == nil {
		now = time.Now
	}

	attempts := make([]Attempt, 0, cfg.MaxAttempts)
	for n := 1; ; n++ {
		status, err := v.Checker.Check(ctx, cfg.Endpoint)
		attempt := Attempt{Number: n, Status: status, Timestamp: now()}
		if err != nil {
			attempt.Status = StatusUnreachable
			attempt.Error = err.Error()
		}
		attempts = append(attempts, attempt)
		if v.OnAttempt != nil {
			v.OnAttempt(attempt)
		}

		if attempt.Healthy() {
			return Result{Succeeded: true, Attempts: attempts}
		}

		if n >= cfg.MaxAttempts {
			return Result{
				Succeeded: false,
				Attempts:  attempts,
				Err:       fmt.Errorf("%w: %s not healthy", ErrRetriesExhausted, cfg.Endpoint),
			}
		}

		if err := v.Sleeper.Sleep(ctx, cfg.Interval); err != nil {
			return Result{
				Succeeded: false,
				Attempts:  attempts,
				Err:       fmt.Errorf("health check interrupted: %w", err),
			}
		}
	}
}

// Verify runs a Verifier with the given checker and sleeper.
func Verify(ctx context.Context, cfg Config, checker Checker, sleeper Sleeper) Result {
	return Verifier{Checker: checker, Sleeper: sleeper}.Verify(ctx, cfg)
}
