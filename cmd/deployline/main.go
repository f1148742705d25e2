// Command deployline builds, tests, packages, deploys and verifies a
// containerised service in one fail-fast run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	history := flag.Int("history", 0, "Print the N most recent runs and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("deployline %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting deployline",
		"version", Version,
		"config", *configPath,
	)

	app, err := NewApp(cfg, os.Stdout, logger)
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			logger.Error("failed to start",
				"error", appErr.Err,
				"operation", appErr.Op,
			)
			return appErr.ExitCode
		}
		logger.Error("failed to start", "error", err)
		return ExitConfigError
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		if err := app.PrintHistory(ctx, *history); err != nil {
			logger.Error("failed to list runs", "error", err)
			return ExitDatabaseError
		}
		return ExitSuccess
	}

	return app.Run(ctx)
}
