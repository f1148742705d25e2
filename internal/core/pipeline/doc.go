// Package pipeline provides the stage-sequencing engine for deployments.
//
// A pipeline is an ordered list of named stages. Each stage wraps an Action
// that reports an explicit Result instead of panicking or exiting. The Runner
// executes stages one at a time and stops at the first failure, producing a
// Report whose outcomes are always a prefix of the stage list.
//
// # Usage
//
//	config := pipeline.RunnerConfig{
//	    OnProgress: func(stage, status, message string) {
//	        logger.Info("stage "+status, "stage", stage, "message", message)
//	    },
//	}
//	runner, err := pipeline.NewRunner(config,
//	    pipeline.Stage{Name: "test", Action: runTests},
//	    pipeline.Stage{Name: "deploy", Action: redeploy},
//	)
//	report := runner.Run(ctx)
//	os.Exit(report.ExitCode())
//
// The package performs no I/O of its own; actions supplied by the imperative
// shell (internal/shell/stages) do the actual work.
package pipeline
