// Package runs persists a local index of extraction runs in SQLite.
package runs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scantab/constants"
	"scantab/internal/common"
)

// Store manages the extraction run index.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the run index at dbPath. Use ":memory:" for tests
// and one-shot batch runs.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The modernc driver is not safe for concurrent writes over many conns.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("runs.store.opened", "path", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		format TEXT NOT NULL,
		page INTEGER NOT NULL,
		status TEXT NOT NULL,
		table_count INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		output_path TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON extraction_runs(source_path);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Run is one row of the run index.
type Run struct {
	ID         uuid.UUID
	SourcePath string
	Format     string
	Page       int
	Status     constants.RunStatus
	TableCount int
	RowCount   int
	OutputPath string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Start records a new RUNNING row for one page of a source file.
func (s *Store) Start(ctx context.Context, sourcePath, format string, page int) (uuid.UUID, error) {
	if !slices.Contains(constants.Formats, format) {
		return uuid.Nil, fmt.Errorf("format %q: %w", format, common.ErrInvalidInput)
	}
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, source_path, format, page, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), sourcePath, format, page, string(constants.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	s.logger.Info("runs.start", "run_id", id, "source", sourcePath, "page", page)
	return id, nil
}

// MarkParsed finishes a run whose response parsed into tables.
func (s *Store) MarkParsed(ctx context.Context, id uuid.UUID, tableCount, rowCount int, outputPath string) error {
	return s.finish(ctx, id, constants.RunStatusParsed, tableCount, rowCount, outputPath, "")
}

// MarkFallback finishes a run whose response could not be parsed; the raw
// text dump path is recorded as the output.
func (s *Store) MarkFallback(ctx context.Context, id uuid.UUID, outputPath string) error {
	return s.finish(ctx, id, constants.RunStatusFallback, 0, 0, outputPath, "")
}

// MarkFailed finishes a run that errored before producing output.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return s.finish(ctx, id, constants.RunStatusFailed, 0, 0, "", cause)
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, status constants.RunStatus, tableCount, rowCount int, outputPath, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs
		 SET status = ?, table_count = ?, row_count = ?, output_path = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(status), tableCount, rowCount, outputPath, cause, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	s.logger.Info("runs.finish", "run_id", id, "status", status)
	return nil
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_path, format, page, status, table_count, row_count,
		        COALESCE(output_path, ''), COALESCE(error, ''), started_at, finished_at
		 FROM extraction_runs WHERE id = ?`, id.String())
	return scanRun(row)
}

// ListBySource returns all runs for a source file, page order.
func (s *Store) ListBySource(ctx context.Context, sourcePath string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, format, page, status, table_count, row_count,
		        COALESCE(output_path, ''), COALESCE(error, ''), started_at, finished_at
		 FROM extraction_runs WHERE source_path = ? ORDER BY page`, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary counts runs per status.
func (s *Store) Summary(ctx context.Context) (map[constants.RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM extraction_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[constants.RunStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[constants.RunStatus(status)] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var id, status string
	var finished sql.NullTime
	err := row.Scan(&id, &r.SourcePath, &r.Format, &r.Page, &status,
		&r.TableCount, &r.RowCount, &r.OutputPath, &r.Error, &r.StartedAt, &finished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	r.Status = constants.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
