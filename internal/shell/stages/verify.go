package stages

import (
	"context"

	corehealth "github.com/artpar/deployline/internal/core/health"
	"github.com/artpar/deployline/internal/core/pipeline"
)

// HealthVerifier waits for the deployed service to become healthy.
// *health.Probe satisfies it.
type HealthVerifier interface {
	Verify(ctx context.Context) corehealth.Result
}

// NewVerifyStage runs the health probe. Exhausting the retry budget fails
// the stage with the attempt count and last observed status.
func NewVerifyStage(probe HealthVerifier) pipeline.Stage {
	return pipeline.Stage{
		Name: StageVerify,
		Action: func(ctx context.Context) pipeline.Result {
			result := probe.Verify(ctx)
			return pipeline.Result{Succeeded: result.Succeeded, Detail: result.Detail()}
		},
	}
}
