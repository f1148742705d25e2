package stages

import (
	"context"
	"fmt"

	"github.com/artpar/deployline/internal/core/deployment"
	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/artpar/deployline/internal/shell/docker"
)

// ImageBuilder builds container images. docker.Client satisfies it.
type ImageBuilder interface {
	BuildImage(ctx context.Context, spec docker.BuildSpec) error
}

// PackageConfig describes the image the package stage produces.
type PackageConfig struct {
	SourceDir  string
	Dockerfile string
	Service    deployment.Service
}

// NewPackageStage builds the service image from the source tree.
func NewPackageStage(builder ImageBuilder, cfg PackageConfig) pipeline.Stage {
	return pipeline.Stage{
		Name: StagePackage,
		Action: func(ctx context.Context) pipeline.Result {
			image := deployment.ImageTag(cfg.Service.Image)
			err := builder.BuildImage(ctx, docker.BuildSpec{
				ContextDir: cfg.SourceDir,
				Dockerfile: dockerfileOrDefault(cfg.Dockerfile),
				Tags:       []string{image},
				Labels:     deployment.ServiceLabels(cfg.Service.Name),
			})
			if err != nil {
				return pipeline.Failuref("build image %s: %v", image, err)
			}
			return pipeline.Success(fmt.Sprintf("built image %s", image))
		},
	}
}
