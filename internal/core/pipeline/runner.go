package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Progress statuses passed to RunnerConfig.OnProgress.
const (
	ProgressStarted   = "started"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// OnProgress, if set, is called when a stage starts, completes or fails.
	OnProgress func(stage, status, message string)
}

// Runner executes stages in order, halting on the first failure.
type Runner struct {
	stages []Stage
	config RunnerConfig
}

// NewRunner validates the stage list and returns a runner for it.
func NewRunner(config RunnerConfig, stages ...Stage) (*Runner, error) {
	if err := validateStages(stages); err != nil {
		return nil, err
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	owned := make([]Stage, len(stages))
	copy(owned, stages)

	return &Runner{
		stages: owned,
		config: config,
	}, nil
}

// Stages returns the stage names in execution order.
func (r *Runner) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage once, in order, and returns the report.
// No stage after the first failure is invoked.
func (r *Runner) Run(ctx context.Context) Report {
	outcomes := make([]StageOutcome, 0, len(r.stages))

	for _, stage := range r.stages {
		outcome := r.runStage(ctx, stage)
		outcomes = append(outcomes, outcome)

		if !outcome.Succeeded {
			r.emit(stage.Name, ProgressFailed, outcome.ErrorDetail)
			break
		}
		r.emit(stage.Name, ProgressCompleted, outcome.Detail)
	}

	return newReport(outcomes)
}

// runStage invokes one stage action and converts its result into an outcome.
func (r *Runner) runStage(ctx context.Context, stage Stage) StageOutcome {
	startedAt := r.config.Now()

	if err := ctx.Err(); err != nil {
		return StageOutcome{
			Stage:       stage.Name,
			Succeeded:   false,
			StartedAt:   startedAt,
			FinishedAt:  startedAt,
			ErrorDetail: fmt.Sprintf("pipeline cancelled: %v", err),
		}
	}

	r.emit(stage.Name, ProgressStarted, fmt.Sprintf("Starting %s", stage.Name))
	result := invoke(ctx, stage.Action)
	finishedAt := r.config.Now()

	outcome := StageOutcome{
		Stage:      stage.Name,
		Succeeded:  result.Succeeded,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if result.Succeeded {
		outcome.Detail = result.Detail
	} else {
		outcome.ErrorDetail = result.Detail
		if outcome.ErrorDetail == "" {
			outcome.ErrorDetail = "stage reported failure without detail"
		}
	}
	return outcome
}

// invoke calls an action, turning a panic into a failed result.
func invoke(ctx context.Context, action Action) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			result = Failuref("stage panicked: %v", p)
		}
	}()
	return action(ctx)
}

func (r *Runner) emit(stage, status, message string) {
	if r.config.OnProgress != nil {
		r.config.OnProgress(stage, status, message)
	}
}
