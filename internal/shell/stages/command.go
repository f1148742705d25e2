package stages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/artpar/deployline/internal/core/pipeline"
)

const (
	// DefaultCommandTimeout bounds install and test commands.
	DefaultCommandTimeout = 10 * time.Minute

	// outputTailLines is how much command output a failure detail carries.
	outputTailLines = 20

	// commandWaitDelay bounds how long a killed command may hold its output pipes.
	commandWaitDelay = 2 * time.Second
)

// CommandConfig describes a shell command run as a stage.
type CommandConfig struct {
	Name    string
	Command string
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewCommandStage runs cfg.Command with sh -c inside cfg.Dir. A non-zero exit
// status fails the stage with the tail of the combined output. An empty
// command succeeds without running anything.
func NewCommandStage(cfg CommandConfig) pipeline.Stage {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCommandTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "stage", "stage", cfg.Name)

	return pipeline.Stage{
		Name: cfg.Name,
		Action: func(ctx context.Context) pipeline.Result {
			if strings.TrimSpace(cfg.Command) == "" {
				return pipeline.Success("skipped: no command configured")
			}

			out, err := runShell(ctx, cfg.Command, cfg.Dir, cfg.Timeout)
			logger.Debug("command output", "command", cfg.Command, "output", out)

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return pipeline.Failuref("command %q timed out after %s%s", cfg.Command, cfg.Timeout, tailSuffix(out))
			case err != nil:
				return pipeline.Failuref("command %q failed: %v%s", cfg.Command, err, tailSuffix(out))
			}
			return pipeline.Success(fmt.Sprintf("command %q succeeded", cfg.Command))
		},
	}
}

// runShell executes command and returns its combined output.
func runShell(ctx context.Context, command, dir string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = commandWaitDelay

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return buf.String(), err
}

func tailSuffix(out string) string {
	tail := lastLines(out, outputTailLines)
	if tail == "" {
		return ""
	}
	return "\n" + tail
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
