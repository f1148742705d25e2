package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/artpar/deployline/internal/core/domain"
	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/artpar/deployline/internal/shell/deploy"
	"github.com/artpar/deployline/internal/shell/docker"
	"github.com/artpar/deployline/internal/shell/health"
	"github.com/artpar/deployline/internal/shell/report"
	"github.com/artpar/deployline/internal/shell/stages"
	"github.com/artpar/deployline/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess        = pipeline.ExitSucceeded
	ExitPipelineFailed = pipeline.ExitFailed
	ExitConfigError    = 2
	ExitDatabaseError  = 3
	ExitDockerError    = 4
)

// =============================================================================
// App
// =============================================================================

// App wires the pipeline stages to Docker, the health probe and run history.
type App struct {
	config *Config
	docker docker.Client
	store  store.Store // nil when run history is disabled
	out    io.Writer
	logger *slog.Logger

	deployed *docker.ContainerInfo
}

// NewApp connects to the database and the Docker daemon.
func NewApp(cfg *Config, out io.Writer, logger *slog.Logger) (*App, error) {
	var s store.Store
	if cfg.Database.DSN != "" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." && cfg.Database.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitDatabaseError}
			}
		}
		sqlite, err := store.NewSQLiteStore(cfg.Database.DSN)
		if err != nil {
			return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitDatabaseError}
		}
		s = sqlite
	}

	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		closeStore(s)
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitDockerError}
	}

	return newApp(cfg, d, s, out, logger), nil
}

func newApp(cfg *Config, d docker.Client, s store.Store, out io.Writer, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		docker: d,
		store:  s,
		out:    out,
		logger: logger,
	}
}

// Run executes the deployment pipeline once and returns the process exit code.
func (a *App) Run(ctx context.Context) int {
	if err := a.docker.Ping(ctx); err != nil {
		a.logger.Error("docker daemon unreachable", "error", err)
		return ExitDockerError
	}

	runner, err := a.buildPipeline()
	if err != nil {
		a.logger.Error("failed to build pipeline", "error", err)
		return ExitConfigError
	}

	a.logger.Info("starting pipeline",
		"service", a.config.Service.Name,
		"stages", runner.Stages(),
	)

	rep := runner.Run(ctx)
	fmt.Fprint(a.out, rep.Summary())

	a.record(ctx, rep)

	if failed, ok := rep.FailedStage(); ok {
		fmt.Fprintf(a.out, "deployment failed at stage %q\n", failed.Stage)
		return rep.ExitCode()
	}

	state := "unknown"
	if a.deployed != nil {
		state = string(a.deployed.Status)
	}
	fmt.Fprintf(a.out, "service %s is %s at %s\n", a.config.Service.Name, state, a.config.Health.ServiceURL())
	return rep.ExitCode()
}

func (a *App) buildPipeline() (*pipeline.Runner, error) {
	svc := a.config.Service.Deployment()

	target, err := deploy.NewTarget(a.docker, svc, a.logger)
	if err != nil {
		return nil, err
	}

	probe := health.NewProbe(a.config.Health.Probe(), health.ProbeConfig{
		RequestTimeout: a.config.Health.RequestTimeout,
		Logger:         a.logger,
	})

	progress := a.logger.With("component", "pipeline")
	runnerConfig := pipeline.RunnerConfig{
		OnProgress: func(stage, status, message string) {
			level := slog.LevelInfo
			if status == pipeline.ProgressFailed {
				level = slog.LevelError
			}
			progress.Log(context.Background(), level, "stage "+status, "stage", stage, "message", message)
		},
	}

	return stages.NewDeploymentPipeline(runnerConfig, stages.Settings{
		SourceDir:      a.config.Pipeline.SourceDir,
		Dockerfile:     a.config.Service.Dockerfile,
		InstallCommand: a.config.Pipeline.InstallCommand,
		TestCommand:    a.config.Pipeline.TestCommand,
		CommandTimeout: a.config.Pipeline.CommandTimeout,
		Service:        svc,
	}, &stages.Dependencies{
		Builder: a.docker,
		Target:  target,
		Probe:   probe,
		Logger:  a.logger,
		OnDeployed: func(info *docker.ContainerInfo) {
			a.deployed = info
		},
	})
}

// record persists the run and writes the report file. Failures here are
// logged and never change the pipeline result.
func (a *App) record(ctx context.Context, rep pipeline.Report) {
	run, err := domain.NewRun(a.config.Service.Name, a.config.Health.Endpoint, rep)
	if err != nil {
		a.logger.Warn("run not recorded", "error", err)
		return
	}

	if a.store != nil {
		// The pipeline context may be cancelled; history is still written.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.store.SaveRun(saveCtx, run); err != nil {
			a.logger.Warn("failed to save run history", "run_id", run.ID, "error", err)
		} else {
			a.logger.Debug("run saved", "run_id", run.ID)
		}
	}

	if a.config.Report.File != "" {
		if err := report.WriteFile(a.config.Report.File, run); err != nil {
			a.logger.Warn("failed to write report", "file", a.config.Report.File, "error", err)
		} else {
			a.logger.Info("report written", "file", a.config.Report.File)
		}
	}
}

// PrintHistory writes the n most recent runs.
func (a *App) PrintHistory(ctx context.Context, n int) error {
	if a.store == nil {
		return errors.New("run history is disabled (database.dsn is empty)")
	}

	runs, err := a.store.ListRuns(ctx, store.ListOptions{Limit: n})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSERVICE\tSTATUS\tFAILED STAGE\tDURATION")
	for _, r := range runs {
		failed := r.FailedStage
		if failed == "" {
			failed = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Service,
			r.Status,
			failed,
			r.Duration().Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

// Close releases the Docker client and the database.
func (a *App) Close() {
	if err := a.docker.Close(); err != nil {
		a.logger.Error("Docker client close error", "error", err)
	}
	closeStore(a.store)
}

func closeStore(s store.Store) {
	if s != nil {
		s.Close()
	}
}

// =============================================================================
// App Error
// =============================================================================

// AppError represents an error during application setup.
type AppError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *AppError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}
