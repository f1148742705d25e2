package stages

import (
	"context"
	"fmt"

	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/artpar/deployline/internal/shell/docker"
)

// Deployer replaces the running service instance. *deploy.Target satisfies it.
type Deployer interface {
	Redeploy(ctx context.Context) (*docker.ContainerInfo, error)
}

// NewDeployStage redeploys the service. onDeployed, if set, receives the
// started container.
func NewDeployStage(target Deployer, onDeployed func(*docker.ContainerInfo)) pipeline.Stage {
	return pipeline.Stage{
		Name: StageDeploy,
		Action: func(ctx context.Context) pipeline.Result {
			info, err := target.Redeploy(ctx)
			if err != nil {
				return pipeline.Failuref("redeploy: %v", err)
			}
			if onDeployed != nil {
				onDeployed(info)
			}
			return pipeline.Success(fmt.Sprintf("container %s %s", info.Name, info.Status))
		},
	}
}
