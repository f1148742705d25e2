// Package health implements bounded-retry readiness verification.
//
// The verification loop is pure: the HTTP request and the sleep between
// attempts are supplied by the caller through the Checker and Sleeper
// interfaces (see internal/shell/health for the real implementations).
package health

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidConfig is returned when the retry budget or endpoint is unusable.
	ErrInvalidConfig = errors.New("invalid health check configuration")

	// ErrRetriesExhausted is returned when every attempt was unhealthy.
	ErrRetriesExhausted = errors.New("health check retries exhausted")
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultMaxAttempts is the default retry budget.
	DefaultMaxAttempts = 10

	// DefaultInterval is the default delay between unsuccessful attempts.
	DefaultInterval = 3 * time.Second

	// ExpectedStatus is the only status code treated as healthy.
	ExpectedStatus = http.StatusOK

	// StatusUnreachable marks an attempt where no HTTP response was received.
	StatusUnreachable = 0
)

// Config is the immutable configuration of one verification.
type Config struct {
	Endpoint    string
	MaxAttempts int
	Interval    time.Duration
}

// DefaultConfig returns a config for endpoint with the default retry budget.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:    endpoint,
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
	}
}

// Validate reports whether the config can be used. Invalid budgets are never
// coerced to a default.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval)
	}
	return nil
}

// WorstCaseWait returns the total sleep time when every attempt fails.
// The first attempt is immediate, so it is (MaxAttempts-1) * Interval.
func (c Config) WorstCaseWait() time.Duration {
	if c.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(c.MaxAttempts-1) * c.Interval
}

// =============================================================================
// Attempts and Results
// =============================================================================

// Attempt is one request against the health endpoint.
type Attempt struct {
	Number    int       `json:"number" yaml:"number"`
	Status    int       `json:"status" yaml:"status"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Healthy reports whether the attempt observed the expected status.
func (a Attempt) Healthy() bool {
	return IsHealthy(a.Status)
}

// Reachable reports whether the endpoint produced any HTTP response.
func (a Attempt) Reachable() bool {
	return a.Status != StatusUnreachable
}

// StatusText describes the observed status for diagnostics.
func (a Attempt) StatusText() string {
	if !a.Reachable() {
		if a.Error != "" {
			return "unreachable (" + a.Error + ")"
		}
		return "unreachable"
	}
	return fmt.Sprintf("HTTP %d", a.Status)
}

// IsHealthy classifies a status code. Connection failures (StatusUnreachable)
// and every non-200 status are treated the same: not ready.
func IsHealthy(status int) bool {
	return status == ExpectedStatus
}

// Result is the terminal value of a verification.
type Result struct {
	Succeeded bool      `json:"succeeded" yaml:"succeeded"`
	Attempts  []Attempt `json:"attempts" yaml:"attempts"`
	Err       error     `json:"-" yaml:"-"`
}

// LastAttempt returns the final attempt, if any was made.
func (r Result) LastAttempt() (Attempt, bool) {
	if len(r.Attempts) == 0 {
		return Attempt{}, false
	}
	return r.Attempts[len(r.Attempts)-1], true
}

// Detail describes the result for stage outcomes and logs.
func (r Result) Detail() string {
	last, ok := r.LastAttempt()
	if r.Succeeded {
		return fmt.Sprintf("healthy after %d attempt(s)", len(r.Attempts))
	}
	if !ok {
		if r.Err != nil {
			return r.Err.Error()
		}
		return "no health check attempts made"
	}
	if r.Err != nil {
		return fmt.Sprintf("%v (after %d attempt(s), last status %s)", r.Err, len(r.Attempts), last.StatusText())
	}
	return fmt.Sprintf("unhealthy after %d attempt(s), last status %s", len(r.Attempts), last.StatusText())
}
