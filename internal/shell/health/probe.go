// Package health provides the HTTP readiness probe used after a deployment.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	corehealth "github.com/artpar/deployline/internal/core/health"
)

// ProbeConfig configures the HTTP side of a probe.
type ProbeConfig struct {
	// Client issues the health requests.
	// Default: a client with no redirects followed.
	Client *http.Client

	// RequestTimeout bounds a single request.
	// Default: 2 seconds.
	RequestTimeout time.Duration

	// Logger receives one line per attempt.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultRequestTimeout bounds a single health request.
const DefaultRequestTimeout = 2 * time.Second

// Probe polls an HTTP endpoint until it reports healthy or the retry budget
// runs out.
type Probe struct {
	config   corehealth.Config
	verifier corehealth.Verifier
	logger   *slog.Logger
}

// NewProbe creates a probe for cfg. The config is validated at Verify time so
// that an unusable budget still yields a failed result rather than a panic.
func NewProbe(cfg corehealth.Config, pc ProbeConfig) *Probe {
	if pc.RequestTimeout == 0 {
		pc.RequestTimeout = DefaultRequestTimeout
	}
	if pc.Client == nil {
		pc.Client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if pc.Logger == nil {
		pc.Logger = slog.Default()
	}

	logger := pc.Logger.With("component", "health_probe", "endpoint", cfg.Endpoint)

	p := &Probe{
		config: cfg,
		logger: logger,
	}
	p.verifier = corehealth.Verifier{
		Checker:   &HTTPChecker{Client: pc.Client, Timeout: pc.RequestTimeout},
		Sleeper:   TimerSleeper{},
		OnAttempt: p.logAttempt,
	}
	return p
}

// Config returns the retry budget of the probe.
func (p *Probe) Config() corehealth.Config {
	return p.config
}

// Verify blocks until the endpoint is healthy, the budget is exhausted or ctx
// is cancelled.
func (p *Probe) Verify(ctx context.Context) corehealth.Result {
	p.logger.Info("waiting for service to become healthy",
		"max_attempts", p.config.MaxAttempts,
		"interval", p.config.Interval,
	)

	result := p.verifier.Verify(ctx, p.config)
	if result.Succeeded {
		p.logger.Info("service healthy", "attempts", len(result.Attempts))
	} else {
		p.logger.Warn("service not healthy", "attempts", len(result.Attempts), "error", result.Err)
	}
	return result
}

func (p *Probe) logAttempt(a corehealth.Attempt) {
	if a.Healthy() {
		p.logger.Debug("health attempt passed", "attempt", a.Number, "status", a.Status)
		return
	}
	p.logger.Info("health attempt failed",
		"attempt", a.Number,
		"of", p.config.MaxAttempts,
		"status", a.StatusText(),
	)
}

// =============================================================================
// HTTP Checker
// =============================================================================

// HTTPChecker performs a single GET against the endpoint.
type HTTPChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

// Check returns the response status code. Transport failures, including
// connection refused and timeouts, return StatusUnreachable.
func (c *HTTPChecker) Check(ctx context.Context, endpoint string) (int, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return corehealth.StatusUnreachable, fmt.Errorf("build request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return corehealth.StatusUnreachable, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// =============================================================================
// Sleeper
// =============================================================================

// TimerSleeper sleeps on a real timer and wakes early when ctx is done.
type TimerSleeper struct{}

// Sleep waits for d.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
