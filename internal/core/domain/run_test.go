package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/deployline/internal/core/pipeline"
)

func testReport(failLast bool) pipeline.Report {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	outcomes := []pipeline.StageOutcome{
		{Stage: "checkout", Succeeded: true, StartedAt: t0, FinishedAt: t0.Add(time.Second)},
		{Stage: "verify", Succeeded: !failLast, StartedAt: t0.Add(time.Second), FinishedAt: t0.Add(28 * time.Second)},
	}
	if failLast {
		outcomes[1].ErrorDetail = "unhealthy after 10 attempt(s)"
	}
	return pipeline.Report{Outcomes: outcomes, Succeeded: !failLast}
}

func TestNewRun_Succeeded(t *testing.T) {
	run, err := NewRun("greeter", "http://localhost:5000/health", testReport(false))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(run.ID, "run_"))
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.True(t, run.Succeeded())
	assert.Empty(t, run.FailedStage)
	assert.Len(t, run.Stages, 2)
	assert.Equal(t, 28*time.Second, run.Duration())
}

func TestNewRun_Failed(t *testing.T) {
	run, err := NewRun("greeter", "http://localhost:5000/health", testReport(true))
	require.NoError(t, err)

	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "verify", run.FailedStage)
}

func TestNewRun_Validation(t *testing.T) {
	_, err := NewRun("", "", testReport(false))
	assert.ErrorIs(t, err, ErrServiceRequired)

	_, err = NewRun("greeter", "", pipeline.Report{})
	assert.ErrorIs(t, err, ErrEmptyReport)
}

func TestGenerateRunID_Unique(t *testing.T) {
	assert.NotEqual(t, GenerateRunID(), GenerateRunID())
}
