package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/deployline/internal/core/domain"
	"github.com/artpar/deployline/internal/core/pipeline"
)

func failedRun(t *testing.T) *domain.Run {
	t.Helper()
	t0 := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	report := pipeline.Report{Outcomes: []pipeline.StageOutcome{
		{Stage: "checkout", Succeeded: true, StartedAt: t0, FinishedAt: t0.Add(time.Second), Detail: "source at /src"},
		{Stage: "verify", Succeeded: false, StartedAt: t0.Add(time.Second), FinishedAt: t0.Add(28 * time.Second),
			ErrorDetail: "health check retries exhausted (after 10 attempt(s), last status HTTP 503)"},
	}}
	run, err := domain.NewRun("greeter", "http://localhost:5000/health", report)
	require.NoError(t, err)
	return run
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, failedRun(t)))

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, "verify", doc.FailedStage)
	assert.Equal(t, "28s", doc.Duration)
	require.Len(t, doc.Stages, 2)
	assert.Equal(t, "PASS", doc.Stages[0].Status)
	assert.Equal(t, "FAIL", doc.Stages[1].Status)
	assert.Equal(t, "27s", doc.Stages[1].Duration)
	assert.Contains(t, doc.Stages[1].Error, "last status HTTP 503")

	assert.NotContains(t, buf.String(), "failed_stage: \"\"")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last-run.yaml")
	run := failedRun(t)

	require.NoError(t, WriteFile(path, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id: "+run.ID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
