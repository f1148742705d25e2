package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Exit codes derived from a report.
const (
	ExitSucceeded = 0
	ExitFailed    = 1
)

// StageOutcome records how a single stage finished. It is never modified
// after the runner creates it.
type StageOutcome struct {
	Stage       string    `json:"stage" yaml:"stage"`
	Succeeded   bool      `json:"succeeded" yaml:"succeeded"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
	Detail      string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`
}

// Duration returns how long the stage ran.
func (o StageOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Status returns "PASS" or "FAIL".
func (o StageOutcome) Status() string {
	if o.Succeeded {
		return "PASS"
	}
	return "FAIL"
}

// Report aggregates stage outcomes for one pipeline run.
//
// Outcomes is a prefix of the defined stage list that ends at (and includes)
// the first failing stage. Succeeded is true iff every outcome succeeded.
type Report struct {
	Outcomes  []StageOutcome `json:"outcomes" yaml:"outcomes"`
	Succeeded bool           `json:"succeeded" yaml:"succeeded"`
}

// newReport builds a report from outcomes, deriving the overall status.
func newReport(outcomes []StageOutcome) Report {
	succeeded := len(outcomes) > 0
	for _, o := range outcomes {
		if !o.Succeeded {
			succeeded = false
			break
		}
	}
	return Report{Outcomes: outcomes, Succeeded: succeeded}
}

// FailedStage returns the outcome of the stage that stopped the pipeline.
func (r Report) FailedStage() (StageOutcome, bool) {
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// ExitCode returns the process exit code for this report.
func (r Report) ExitCode() int {
	if r.Succeeded {
		return ExitSucceeded
	}
	return ExitFailed
}

// Duration returns the wall-clock time from the first stage start to the
// last stage finish.
func (r Report) Duration() time.Duration {
	if len(r.Outcomes) == 0 {
		return 0
	}
	return r.Outcomes[len(r.Outcomes)-1].FinishedAt.Sub(r.Outcomes[0].StartedAt)
}

// Summary renders a human-readable table of stage results.
func (r Report) Summary() string {
	var b strings.Builder

	width := len("STAGE")
	for _, o := range r.Outcomes {
		if len(o.Stage) > width {
			width = len(o.Stage)
		}
	}

	fmt.Fprintf(&b, "%-*s  %-6s  %s\n", width, "STAGE", "RESULT", "DURATION")
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "%-*s  %-6s  %s\n", width, o.Stage, o.Status(), o.Duration().Round(time.Millisecond))
	}

	if failed, ok := r.FailedStage(); ok {
		fmt.Fprintf(&b, "\npipeline FAILED at stage %q: %s\n", failed.Stage, failed.ErrorDetail)
	} else if r.Succeeded {
		fmt.Fprintf(&b, "\npipeline SUCCEEDED in %s\n", r.Duration().Round(time.Millisecond))
	}

	return b.String()
}
