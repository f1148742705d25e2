package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeClock advances one second on every call.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// countingStages builds n stages that count their invocations. The stage at
// failAt (1-based) fails; failAt <= 0 means every stage succeeds.
func countingStages(n, failAt int) ([]Stage, []int) {
	calls := make([]int, n)
	stages := make([]Stage, n)
	for i := 0; i < n; i++ {
		idx := i
		stages[i] = Stage{
			Name: fmt.Sprintf("stage-%d", i+1),
			Action: func(ctx context.Context) Result {
				calls[idx]++
				if idx+1 == failAt {
					return Failure("boom")
				}
				return Success("ok")
			},
		}
	}
	return stages, calls
}

func newTestRunner(t *testing.T, stages []Stage) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerConfig{Now: newFakeClock().Now}, stages...)
	require.NoError(t, err)
	return r
}

// =============================================================================
// Fail-fast Tests
// =============================================================================

func TestRun_AllStagesSucceed(t *testing.T) {
	stages, calls := countingStages(6, 0)
	r := newTestRunner(t, stages)

	report := r.Run(context.Background())

	assert.True(t, report.Succeeded)
	require.Len(t, report.Outcomes, 6)
	for i, o := range report.Outcomes {
		assert.Equal(t, stages[i].Name, o.Stage)
		assert.True(t, o.Succeeded)
		assert.Equal(t, "ok", o.Detail)
		assert.Empty(t, o.ErrorDetail)
	}
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, calls)
	assert.Equal(t, ExitSucceeded, report.ExitCode())
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	for k := 1; k <= 6; k++ {
		t.Run(fmt.Sprintf("fail at %d", k), func(t *testing.T) {
			stages, calls := countingStages(6, k)
			r := newTestRunner(t, stages)

			report := r.Run(context.Background())

			assert.False(t, report.Succeeded)
			require.Len(t, report.Outcomes, k)
			for i := 0; i < k-1; i++ {
				assert.True(t, report.Outcomes[i].Succeeded)
			}
			last := report.Outcomes[k-1]
			assert.False(t, last.Succeeded)
			assert.Equal(t, "boom", last.ErrorDetail)

			for i, c := range calls {
				if i < k {
					assert.Equal(t, 1, c, "stage %d should run once", i+1)
				} else {
					assert.Equal(t, 0, c, "stage %d must not run", i+1)
				}
			}
			assert.Equal(t, ExitFailed, report.ExitCode())
		})
	}
}

func TestRun_PanicIsRecordedAsFailure(t *testing.T) {
	ran := false
	r := newTestRunner(t, []Stage{
		{Name: "explode", Action: func(ctx context.Context) Result { panic("kaboom") }},
		{Name: "after", Action: func(ctx context.Context) Result { ran = true; return Success("") }},
	})

	report := r.Run(context.Background())

	assert.False(t, report.Succeeded)
	require.Len(t, report.Outcomes, 1)
	assert.Contains(t, report.Outcomes[0].ErrorDetail, "kaboom")
	assert.False(t, ran)
}

func TestRun_FailureWithoutDetailGetsDefaultDetail(t *testing.T) {
	r := newTestRunner(t, []Stage{
		{Name: "quiet", Action: func(ctx context.Context) Result { return Result{} }},
	})

	report := r.Run(context.Background())

	require.Len(t, report.Outcomes, 1)
	assert.NotEmpty(t, report.Outcomes[0].ErrorDetail)
}

func TestRun_CancelledContextStopsBeforeNextStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	secondRan := false

	r := newTestRunner(t, []Stage{
		{Name: "first", Action: func(ctx context.Context) Result { cancel(); return Success("") }},
		{Name: "second", Action: func(ctx context.Context) Result { secondRan = true; return Success("") }},
		{Name: "third", Action: func(ctx context.Context) Result { return Success("") }},
	})

	report := r.Run(ctx)

	assert.False(t, secondRan)
	assert.False(t, report.Succeeded)
	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Outcomes[0].Succeeded)
	assert.Equal(t, "second", report.Outcomes[1].Stage)
	assert.Contains(t, report.Outcomes[1].ErrorDetail, "pipeline cancelled")
}

func TestRun_RecordsTiming(t *testing.T) {
	stages, _ := countingStages(2, 0)
	r := newTestRunner(t, stages)

	report := r.Run(context.Background())

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, time.Second, report.Outcomes[0].Duration())
	assert.True(t, report.Outcomes[1].StartedAt.After(report.Outcomes[0].FinishedAt))
	assert.Equal(t, 3*time.Second, report.Duration())
}

func TestRun_EmitsProgress(t *testing.T) {
	var events []string
	stages, _ := countingStages(3, 2)
	r, err := NewRunner(RunnerConfig{
		OnProgress: func(stage, status, message string) {
			events = append(events, stage+":"+status)
		},
	}, stages...)
	require.NoError(t, err)

	r.Run(context.Background())

	assert.Equal(t, []string{
		"stage-1:started",
		"stage-1:completed",
		"stage-2:started",
		"stage-2:failed",
	}, events)
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewRunner_Validation(t *testing.T) {
	noop := func(ctx context.Context) Result { return Success("") }

	tests := []struct {
		name   string
		stages []Stage
		err    error
	}{
		{"no stages", nil, ErrNoStages},
		{"empty name", []Stage{{Name: "", Action: noop}}, ErrInvalidStage},
		{"nil action", []Stage{{Name: "build"}}, ErrInvalidStage},
		{"duplicate", []Stage{{Name: "build", Action: noop}, {Name: "build", Action: noop}}, ErrInvalidStage},
		{"continue on failure", []Stage{{Name: "build", Action: noop, ContinueOnFailure: true}}, ErrInvalidStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRunner(RunnerConfig{}, tt.stages...)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewRunner_CopiesStages(t *testing.T) {
	stages, _ := countingStages(2, 0)
	r := newTestRunner(t, stages)

	stages[0].Name = "mutated"

	assert.Equal(t, []string{"stage-1", "stage-2"}, r.Stages())
}
