package stages

import (
	"log/slog"
	"time"

	"github.com/artpar/deployline/internal/core/deployment"
	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/artpar/deployline/internal/shell/docker"
)

// Stage names in execution order.
const (
	StageCheckout = "checkout"
	StageInstall  = "install"
	StageTest     = "test"
	StagePackage  = "package"
	StageDeploy   = "deploy"
	StageVerify   = "verify"
)

// Settings holds the non-service parameters of the pipeline.
type Settings struct {
	SourceDir      string
	Dockerfile     string
	InstallCommand string
	TestCommand    string
	CommandTimeout time.Duration
	Service        deployment.Service
}

// Dependencies holds all dependencies needed to create pipeline stages
type Dependencies struct {
	Builder ImageBuilder
	Target  Deployer
	Probe   HealthVerifier
	Logger  *slog.Logger

	// OnDeployed receives the container started by the deploy stage.
	OnDeployed func(*docker.ContainerInfo)
}

// NewDeploymentPipeline creates the standard deployment pipeline:
// checkout, install, test, package, deploy, verify.
func NewDeploymentPipeline(config pipeline.RunnerConfig, settings Settings, deps *Dependencies) (*pipeline.Runner, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return pipeline.NewRunner(config,
		NewCheckoutStage(settings.SourceDir, settings.Dockerfile),
		NewCommandStage(CommandConfig{
			Name:    StageInstall,
			Command: settings.InstallCommand,
			Dir:     settings.SourceDir,
			Timeout: settings.CommandTimeout,
			Logger:  logger,
		}),
		NewCommandStage(CommandConfig{
			Name:    StageTest,
			Command: settings.TestCommand,
			Dir:     settings.SourceDir,
			Timeout: settings.CommandTimeout,
			Logger:  logger,
		}),
		NewPackageStage(deps.Builder, PackageConfig{
			SourceDir:  settings.SourceDir,
			Dockerfile: settings.Dockerfile,
			Service:    settings.Service,
		}),
		NewDeployStage(deps.Target, deps.OnDeployed),
		NewVerifyStage(deps.Probe),
	)
}
