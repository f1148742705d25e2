package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/deployline/internal/core/domain"
	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testReport(start time.Time, failAt int) pipeline.Report {
	names := []string{"checkout", "install", "test", "package", "deploy", "verify"}
	var outcomes []pipeline.StageOutcome
	at := start
	for i, name := range names {
		o := pipeline.StageOutcome{
			Stage:      name,
			Succeeded:  i != failAt,
			StartedAt:  at,
			FinishedAt: at.Add(1500 * time.Millisecond),
		}
		if o.Succeeded {
			o.Detail = name + " ok"
		} else {
			o.ErrorDetail = name + " broke"
		}
		outcomes = append(outcomes, o)
		at = o.FinishedAt
		if i == failAt {
			break
		}
	}
	succeeded := failAt < 0
	return pipeline.Report{Outcomes: outcomes, Succeeded: succeeded}
}

func createTestRun(t *testing.T, store Store, service string, start time.Time, failAt int) *domain.Run {
	t.Helper()
	run, err := domain.NewRun(service, "http://localhost:5000/health", testReport(start, failAt))
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(context.Background(), run))
	return run
}

// =============================================================================
// Run Tests
// =============================================================================

func TestSaveRun_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	saved := createTestRun(t, store, "greeter", baseTime, 3)

	got, err := store.GetRun(context.Background(), saved.ID)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "greeter", got.Service)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, "package", got.FailedStage)
	assert.True(t, saved.StartedAt.Equal(got.StartedAt))
	assert.True(t, saved.FinishedAt.Equal(got.FinishedAt))

	require.Len(t, got.Stages, 4)
	for i, o := range got.Stages {
		assert.Equal(t, saved.Stages[i].Stage, o.Stage)
		assert.Equal(t, saved.Stages[i].Succeeded, o.Succeeded)
		assert.Equal(t, 1500*time.Millisecond, o.Duration())
	}
	assert.Equal(t, "package broke", got.Stages[3].ErrorDetail)
	assert.Equal(t, "checkout ok", got.Stages[0].Detail)
}

func TestSaveRun_Succeeded(t *testing.T) {
	store := setupTestStore(t)
	saved := createTestRun(t, store, "greeter", baseTime, -1)

	got, err := store.GetRun(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.True(t, got.Succeeded())
	assert.Empty(t, got.FailedStage)
	assert.Len(t, got.Stages, 6)
}

func TestSaveRun_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	saved := createTestRun(t, store, "greeter", baseTime, -1)

	err := store.SaveRun(context.Background(), saved)
	assert.ErrorIs(t, err, ErrDuplicateID)

	runs, err := store.ListRuns(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Len(t, runs[0].Stages, 6, "failed insert must not leave partial outcomes")
}

func TestSaveRun_MissingID(t *testing.T) {
	store := setupTestStore(t)
	err := store.SaveRun(context.Background(), &domain.Run{Service: "greeter"})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestSaveRun_InvalidStatus(t *testing.T) {
	store := setupTestStore(t)
	run := &domain.Run{ID: domain.GenerateRunID(), Service: "greeter", Status: "unknown"}

	err := store.SaveRun(context.Background(), run)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "run_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetRun", storeErr.Op)
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	var ids []string
	for i := 0; i < 5; i++ {
		run := createTestRun(t, store, "greeter", baseTime.Add(time.Duration(i)*time.Minute), -1)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(context.Background(), ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].ID)
	assert.Equal(t, ids[3], runs[1].ID)
	assert.Equal(t, ids[2], runs[2].ID)

	page, err := store.ListRuns(context.Background(), ListOptions{Limit: 3, Offset: 3})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[1].ID)
}

func TestListRuns_SubSecondOrdering(t *testing.T) {
	store := setupTestStore(t)
	first := createTestRun(t, store, "greeter", baseTime.Add(100*time.Millisecond), -1)
	second := createTestRun(t, store, "greeter", baseTime.Add(120*time.Millisecond), -1)

	runs, err := store.ListRuns(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestListRunsByService(t *testing.T) {
	store := setupTestStore(t)
	createTestRun(t, store, "greeter", baseTime, -1)
	createTestRun(t, store, "other", baseTime.Add(time.Minute), 0)
	createTestRun(t, store, "greeter", baseTime.Add(2*time.Minute), 5)

	runs, err := store.ListRunsByService(context.Background(), "greeter", DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "greeter", r.Service)
	}
	assert.Equal(t, "verify", runs[0].FailedStage)
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{}.Normalize())
	assert.Equal(t, ListOptions{Limit: 1000}, ListOptions{Limit: 5000}.Normalize())
	assert.Equal(t, ListOptions{Limit: 5}, ListOptions{Limit: 5, Offset: -1}.Normalize())
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	run, err := domain.NewRun("greeter", "", testReport(baseTime, -1))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithTx(context.Background(), func(tx Store) error {
		require.NoError(t, tx.SaveRun(context.Background(), run))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetRun(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// File Database Tests
// =============================================================================

func TestNewSQLiteStore_ReopenKeepsHistory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")

	first, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	run := createTestRun(t, first, "greeter", baseTime, -1)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dsn)
	require.NoError(t, err, "migrations must be idempotent")
	defer second.Close()

	got, err := second.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestWithForeignKeys(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=on"},
		{"./data/deployline.db", "./data/deployline.db?_foreign_keys=on"},
		{"file:runs.db?_busy_timeout=5000", "file:runs.db?_busy_timeout=5000&_foreign_keys=on"},
		{"file:runs.db?_foreign_keys=off", "file:runs.db?_foreign_keys=off"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withForeignKeys(tt.dsn))
	}
}

func TestNewSQLiteStore_DSNWithQuery(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "history.db") + "?_busy_timeout=5000"

	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	var fk int
	require.NoError(t, store.db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	run := createTestRun(t, store, "greeter", baseTime, -1)
	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestStoreError_Format(t *testing.T) {
	err := NewStoreError("GetRun", "run", "run_1", "run not found", ErrNotFound)
	assert.Equal(t, "GetRun run run_1: run not found", err.Error())
	assert.Equal(t, "SaveRun: failed", NewStoreError("SaveRun", "", "", "failed", nil).Error())
	assert.Equal(t, fmt.Sprintf("%s %s: %s", "ListRuns", "run", "x"), NewStoreError("ListRuns", "run", "", "x", nil).Error())
}
