package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidStage is returned by NewRunner when a stage definition is unusable.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrNoStages is returned by NewRunner when the pipeline has nothing to run.
	ErrNoStages = errors.New("pipeline has no stages")
)

// =============================================================================
// Result
// =============================================================================

// Result is the tagged outcome of a single stage action.
type Result struct {
	Succeeded bool
	Detail    string
}

// Success returns a successful result with optional diagnostic text.
func Success(detail string) Result {
	return Result{Succeeded: true, Detail: detail}
}

// Failure returns a failed result carrying the failure detail.
func Failure(detail string) Result {
	return Result{Succeeded: false, Detail: detail}
}

// Failuref is Failure with fmt.Sprintf formatting.
func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// FromError maps an error to a Result. A nil error is a success.
func FromError(err error, successDetail string) Result {
	if err != nil {
		return Failure(err.Error())
	}
	return Success(successDetail)
}

// =============================================================================
// Stage
// =============================================================================

// Action performs the work of a stage.
type Action func(ctx context.Context) Result

// Stage is one named, ordered unit of pipeline work.
type Stage struct {
	// Name identifies the stage; it must be unique within a pipeline.
	Name string

	// Action is invoked exactly once per pipeline run.
	Action Action

	// ContinueOnFailure must be false. Later stages never run after a failure.
	ContinueOnFailure bool
}

// validateStages checks names, actions and failure policy of a stage list.
func validateStages(stages []Stage) error {
	if len(stages) == 0 {
		return ErrNoStages
	}

	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrInvalidStage, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate stage name %q", ErrInvalidStage, s.Name)
		}
		seen[s.Name] = true

		if s.Action == nil {
			return fmt.Errorf("%w: stage %q has no action", ErrInvalidStage, s.Name)
		}
		if s.ContinueOnFailure {
			return fmt.Errorf("%w: stage %q requests continue-on-failure, which is not supported", ErrInvalidStage, s.Name)
		}
	}
	return nil
}
