// Package ledger records run history in a local SQLite database: one row
// per run and one per segment, mirroring the structured summary the driver
// reports.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger persists run and segment status rows.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
}

// SegmentRecord is the per-segment summary row.
type SegmentRecord struct {
	Ordinal      int
	Kind         string
	AudioCached  bool
	VideoCached  bool
	AudioSeconds float64
	Status       string
	Error        string
}

// Run is a recorded pipeline run.
type Run struct {
	ID         string
	Source     string
	Voice      string
	Avatar     string
	Status     string
	OutputPath string
	Error      string
	StartedAt  time.Time
	EndedAt    sql.NullTime
}

// Open opens (or creates) the ledger database at path.
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	l := &Ledger{db: db, logger: logger}
	if err := l.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	return l, nil
}

// New wraps an existing database handle, for tests.
func New(db *sql.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

func (l *Ledger) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		voice TEXT NOT NULL,
		avatar TEXT NOT NULL,
		status TEXT NOT NULL,
		output_path TEXT,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS run_segments (
		run_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		kind TEXT NOT NULL,
		audio_cached INTEGER NOT NULL DEFAULT 0,
		video_cached INTEGER NOT NULL DEFAULT 0,
		audio_seconds REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, ordinal)
	);`
	_, err := l.db.Exec(schema)
	return err
}

// StartRun inserts the run row with status "running".
func (l *Ledger) StartRun(ctx context.Context, runID, source, voice, avatar string) error {
	query := `INSERT INTO runs (id, source, voice, avatar, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, query, runID, source, voice, avatar, "running", time.Now()); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordSegment upserts one segment summary row.
func (l *Ledger) RecordSegment(ctx context.Context, runID string, rec SegmentRecord) error {
	query := `INSERT OR REPLACE INTO run_segments
		(run_id, ordinal, kind, audio_cached, video_cached, audio_seconds, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, query,
		runID, rec.Ordinal, rec.Kind, boolInt(rec.AudioCached), boolInt(rec.VideoCached),
		rec.AudioSeconds, rec.Status, nullable(rec.Error), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record segment: %w", err)
	}
	return nil
}

// FinishRun closes the run row with its terminal status.
func (l *Ledger) FinishRun(ctx context.Context, runID, status, outputPath, errMsg string) error {
	query := `UPDATE runs SET status = ?, output_path = ?, error = ?, ended_at = ? WHERE id = ?`
	if _, err := l.db.ExecContext(ctx, query, status, nullable(outputPath), nullable(errMsg), time.Now(), runID); err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// GetRun loads one run row.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `SELECT id, source, voice, avatar, status, COALESCE(output_path, ''), COALESCE(error, ''), started_at, ended_at
		FROM runs WHERE id = ?`
	var run Run
	err := l.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.Source, &run.Voice, &run.Avatar, &run.Status,
		&run.OutputPath, &run.Error, &run.StartedAt, &run.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// Segments loads the segment rows of a run ordered by ordinal.
func (l *Ledger) Segments(ctx context.Context, runID string) ([]SegmentRecord, error) {
	query := `SELECT ordinal, kind, audio_cached, video_cached, audio_seconds, status, COALESCE(error, '')
		FROM run_segments WHERE run_id = ? ORDER BY ordinal`
	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []SegmentRecord
	for rows.Next() {
		var rec SegmentRecord
		var audioCached, videoCached int
		if err := rows.Scan(&rec.Ordinal, &rec.Kind, &audioCached, &videoCached, &rec.AudioSeconds, &rec.Status, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		rec.AudioCached = audioCached != 0
		rec.VideoCached = videoCached != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
