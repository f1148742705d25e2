package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/deployline/internal/core/domain"
	"github.com/artpar/deployline/internal/core/pipeline"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// withForeignKeys adds the foreign key pragma to dsn, keeping any query
// parameters it already carries.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction. The transaction is rolled back if fn
// returns an error.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID          string `db:"id"`
	Service     string `db:"service"`
	Endpoint    string `db:"endpoint"`
	Status      string `db:"status"`
	FailedStage string `db:"failed_stage"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
	CreatedAt   string `db:"created_at"`
}

// outcomeRow represents a stage outcome row in the database.
type outcomeRow struct {
	RunID       string `db:"run_id"`
	Position    int    `db:"position"`
	Stage       string `db:"stage"`
	Succeeded   bool   `db:"succeeded"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
	Detail      string `db:"detail"`
	ErrorDetail string `db:"error_detail"`
}

// SaveRun stores a run and its stage outcomes atomically.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.SaveRun(ctx, run)
	})
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, "", opts)
}

func (s *SQLiteStore) ListRunsByService(ctx context.Context, service string, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, service, opts)
}

func saveRun(ctx context.Context, exec executor, run *domain.Run) error {
	if run.ID == "" {
		return NewStoreError("SaveRun", "run", "", "run ID is required", ErrInvalidData)
	}

	query := `
		INSERT INTO runs (
			id, service, endpoint, status, failed_stage,
			started_at, finished_at, created_at
		) VALUES (
			:id, :service, :endpoint, :status, :failed_stage,
			:started_at, :finished_at, :created_at
		)`

	row := runRow{
		ID:          run.ID,
		Service:     run.Service,
		Endpoint:    run.Endpoint,
		Status:      string(run.Status),
		FailedStage: run.FailedStage,
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
		CreatedAt:   formatTime(run.CreatedAt),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("SaveRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "CHECK constraint failed") {
			return NewStoreError("SaveRun", "run", run.ID, fmt.Sprintf("invalid status %q", run.Status), ErrInvalidData)
		}
		return NewStoreError("SaveRun", "run", run.ID, err.Error(), err)
	}

	outcomeQuery := `
		INSERT INTO stage_outcomes (
			run_id, position, stage, succeeded,
			started_at, finished_at, detail, error_detail
		) VALUES (
			:run_id, :position, :stage, :succeeded,
			:started_at, :finished_at, :detail, :error_detail
		)`

	for i, o := range run.Stages {
		orow := outcomeRow{
			RunID:       run.ID,
			Position:    i,
			Stage:       o.Stage,
			Succeeded:   o.Succeeded,
			StartedAt:   formatTime(o.StartedAt),
			FinishedAt:  formatTime(o.FinishedAt),
			Detail:      o.Detail,
			ErrorDetail: o.ErrorDetail,
		}
		if _, err := exec.NamedExecContext(ctx, outcomeQuery, orow); err != nil {
			return NewStoreError("SaveRun", "stage_outcome", run.ID, err.Error(), err)
		}
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	var row runRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return loadRun(ctx, exec, &row)
}

func listRuns(ctx context.Context, exec executor, service string, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if service == "" {
		err = exec.SelectContext(ctx, &rows,
			`SELECT * FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
			opts.Limit, opts.Offset)
	} else {
		err = exec.SelectContext(ctx, &rows,
			`SELECT * FROM runs WHERE service = ? ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
			service, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := loadRun(ctx, exec, &rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// loadRun converts a row and attaches its stage outcomes in execution order.
func loadRun(ctx context.Context, exec executor, row *runRow) (*domain.Run, error) {
	var orows []outcomeRow
	err := exec.SelectContext(ctx, &orows,
		`SELECT * FROM stage_outcomes WHERE run_id = ? ORDER BY position`, row.ID)
	if err != nil {
		return nil, NewStoreError("GetRun", "stage_outcome", row.ID, err.Error(), err)
	}

	run := &domain.Run{
		ID:          row.ID,
		Service:     row.Service,
		Endpoint:    row.Endpoint,
		Status:      domain.RunStatus(row.Status),
		FailedStage: row.FailedStage,
		StartedAt:   parseTime(row.StartedAt),
		FinishedAt:  parseTime(row.FinishedAt),
		CreatedAt:   parseTime(row.CreatedAt),
		Stages:      make([]pipeline.StageOutcome, 0, len(orows)),
	}
	for _, o := range orows {
		run.Stages = append(run.Stages, pipeline.StageOutcome{
			Stage:       o.Stage,
			Succeeded:   o.Succeeded,
			StartedAt:   parseTime(o.StartedAt),
			FinishedAt:  parseTime(o.FinishedAt),
			Detail:      o.Detail,
			ErrorDetail: o.ErrorDetail,
		})
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (t *txSQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	return saveRun(ctx, t.tx, run)
}

func (t *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, t.tx, id)
}

func (t *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, t.tx, "", opts)
}

func (t *txSQLiteStore) ListRunsByService(ctx context.Context, service string, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, t.tx, service, opts)
}

// WithTx reuses the enclosing transaction.
func (t *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *txSQLiteStore) Close() error {
	return nil
}
