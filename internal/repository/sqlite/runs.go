package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsweep/opsweep/internal/domain/decommission"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	scope           TEXT NOT NULL,
	tier            TEXT NOT NULL,
	operator        TEXT,
	dry_run         INTEGER NOT NULL,
	status          TEXT NOT NULL,
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP NOT NULL,
	deleted         INTEGER NOT NULL DEFAULT 0,
	scaled_down     INTEGER NOT NULL DEFAULT 0,
	skipped         INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	dry_run_only    INTEGER NOT NULL DEFAULT 0,
	report_location TEXT
);
`

// RunRepository indexes finished runs in a local SQLite database so
// past runs can be listed without scanning the blob store.
type RunRepository struct {
	db *sql.DB
}

// RunSummary is one row of the run index.
type RunSummary struct {
	RunID          string
	Scope          string
	Tier           string
	Operator       string
	DryRun         bool
	Status         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Deleted        int
	ScaledDown     int
	Skipped        int
	Failed         int
	DryRunOnly     int
	ReportLocation string
}

// New opens (or creates) the run index at path.
func New(path string) (*RunRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run index: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	return &RunRepository{db: db}, nil
}

// Save inserts one finished run into the index.
func (r *RunRepository) Save(ctx context.Context, report *decommission.Report, reportLocation string) error {
	counts := report.Counts()
	skipped := counts[decommission.OutcomeSkippedDependency] + counts[decommission.OutcomeSkippedProtected]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, scope, tier, operator, dry_run, status,
			started_at, finished_at,
			deleted, scaled_down, skipped, failed, dry_run_only,
			report_location
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Scope, string(report.Tier), report.Operator,
		report.DryRun, string(report.Status),
		report.StartedAt, report.FinishedAt,
		counts[decommission.OutcomeDeleted], counts[decommission.OutcomeScaledDown],
		skipped, counts[decommission.OutcomeFailed], counts[decommission.OutcomeDryRunOnly],
		reportLocation,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, scope, tier, operator, dry_run, status,
		       started_at, finished_at,
		       deleted, scaled_down, skipped, failed, dry_run_only,
		       report_location
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(
			&s.RunID, &s.Scope, &s.Tier, &s.Operator, &s.DryRun, &s.Status,
			&s.StartedAt, &s.FinishedAt,
			&s.Deleted, &s.ScaledDown, &s.Skipped, &s.Failed, &s.DryRunOnly,
			&s.ReportLocation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (r *RunRepository) Close() error {
	return r.db.Close()
}
