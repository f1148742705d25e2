package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func outcome(name string, ok bool, start time.Time, d time.Duration) StageOutcome {
	o := StageOutcome{Stage: name, Succeeded: ok, StartedAt: start, FinishedAt: start.Add(d)}
	if !ok {
		o.ErrorDetail = name + " broke"
	}
	return o
}

func TestNewReport_OverallStatus(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, newReport(nil).Succeeded, "empty report is not a success")
	assert.True(t, newReport([]StageOutcome{outcome("a", true, t0, time.Second)}).Succeeded)
	assert.False(t, newReport([]StageOutcome{
		outcome("a", true, t0, time.Second),
		outcome("b", false, t0, time.Second),
	}).Succeeded)
}

func TestReport_FailedStage(t *testing.T) {
	t0 := time.Now()
	r := newReport([]StageOutcome{
		outcome("build", true, t0, time.Second),
		outcome("test", false, t0.Add(time.Second), 2*time.Second),
	})

	failed, ok := r.FailedStage()
	assert.True(t, ok)
	assert.Equal(t, "test", failed.Stage)

	_, ok = newReport([]StageOutcome{outcome("build", true, t0, time.Second)}).FailedStage()
	assert.False(t, ok)
}

func TestReport_Summary(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	failed := newReport([]StageOutcome{
		outcome("checkout", true, t0, 1500*time.Millisecond),
		outcome("verify", false, t0.Add(2*time.Second), 27*time.Second),
	})
	s := failed.Summary()
	assert.Contains(t, s, "checkout  PASS    1.5s")
	assert.Contains(t, s, "verify    FAIL    27s")
	assert.Contains(t, s, `pipeline FAILED at stage "verify": verify broke`)

	passed := newReport([]StageOutcome{outcome("checkout", true, t0, time.Second)})
	assert.Contains(t, passed.Summary(), "pipeline SUCCEEDED in 1s")
}

func TestReport_DurationEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), Report{}.Duration())
}
