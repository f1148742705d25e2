package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/deployline/internal/core/pipeline"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrServiceRequired = errors.New("service name is required")
	ErrEmptyReport     = errors.New("report has no stage outcomes")
)

// =============================================================================
// Run Status
// =============================================================================

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// =============================================================================
// Run
// =============================================================================

// Run is the persisted record of one pipeline invocation.
type Run struct {
	ID          string                  `json:"id" yaml:"id"`
	Service     string                  `json:"service" yaml:"service"`
	Endpoint    string                  `json:"endpoint" yaml:"endpoint"`
	Status      RunStatus               `json:"status" yaml:"status"`
	FailedStage string                  `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Stages      []pipeline.StageOutcome `json:"stages" yaml:"stages"`
	StartedAt   time.Time               `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time               `json:"finished_at" yaml:"finished_at"`
	CreatedAt   time.Time               `json:"created_at" yaml:"created_at"`
}

// NewRun records a finished pipeline report for a service.
func NewRun(service, endpoint string, report pipeline.Report) (*Run, error) {
	if service == "" {
		return nil, ErrServiceRequired
	}
	if len(report.Outcomes) == 0 {
		return nil, ErrEmptyReport
	}

	run := &Run{
		ID:         GenerateRunID(),
		Service:    service,
		Endpoint:   endpoint,
		Status:     RunStatusFailed,
		Stages:     report.Outcomes,
		StartedAt:  report.Outcomes[0].StartedAt.UTC(),
		FinishedAt: report.Outcomes[len(report.Outcomes)-1].FinishedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if report.Succeeded {
		run.Status = RunStatusSucceeded
	}
	if failed, ok := report.FailedStage(); ok {
		run.FailedStage = failed.Stage
	}
	return run, nil
}

// GenerateRunID returns a new unique run identifier.
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// Succeeded reports whether the run completed every stage.
func (r *Run) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// Duration returns the wall-clock time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
