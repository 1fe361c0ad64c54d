package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, zap.NewNop()), mock
}

func TestStartRun(t *testing.T) {
	l, mock := newMockLedger(t)
	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-1", "script.txt", "renato", "studio", "running", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := l.StartRun(context.Background(), "run-1", "script.txt", "renato", "studio"); err != nil {
		t.Fatalf("StartRun returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordSegment(t *testing.T) {
	l, mock := newMockLedger(t)
	mock.ExpectExec("INSERT OR REPLACE INTO run_segments").
		WithArgs("run-1", 2, "news", 1, 0, 12.5, "done", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := SegmentRecord{Ordinal: 2, Kind: "news", AudioCached: true, VideoCached: false, AudioSeconds: 12.5, Status: "done"}
	if err := l.RecordSegment(context.Background(), "run-1", rec); err != nil {
		t.Fatalf("RecordSegment returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordSegmentFailure(t *testing.T) {
	l, mock := newMockLedger(t)
	mock.ExpectExec("INSERT OR REPLACE INTO run_segments").
		WithArgs("run-1", 0, "intro", 0, 0, 0.0, "failed", "rate_limited: provider returned status 429", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := SegmentRecord{
		Ordinal: 0,
		Kind:    "intro",
		Status:  "failed",
		Error:   "rate_limited: provider returned status 429",
	}
	if err := l.RecordSegment(context.Background(), "run-1", rec); err != nil {
		t.Fatalf("RecordSegment returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFinishRun(t *testing.T) {
	l, mock := newMockLedger(t)
	mock.ExpectExec("UPDATE runs SET").
		WithArgs("succeeded", "/out/reel.mp4", nil, sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := l.FinishRun(context.Background(), "run-1", "succeeded", "/out/reel.mp4", ""); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetRun(t *testing.T) {
	l, mock := newMockLedger(t)
	started := time.Now().Add(-time.Minute)
	ended := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "source", "voice", "avatar", "status", "output_path", "error", "started_at", "ended_at",
	}).AddRow("run-1", "script.txt", "renato", "studio", "succeeded", "/out/reel.mp4", "", started, ended)
	mock.ExpectQuery("SELECT id, source, voice, avatar, status").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := l.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.ID != "run-1" || run.Status != "succeeded" || run.OutputPath != "/out/reel.mp4" {
		t.Errorf("run = %+v", run)
	}
	if !run.EndedAt.Valid {
		t.Error("EndedAt not set")
	}
}

func TestSegmentsOrderedByOrdinal(t *testing.T) {
	l, mock := newMockLedger(t)
	rows := sqlmock.NewRows([]string{"ordinal", "kind", "audio_cached", "video_cached", "audio_seconds", "status", "error"}).
		AddRow(0, "intro", 1, 1, 9.5, "done", "").
		AddRow(1, "news", 0, 0, 0.0, "failed", "job_failed: insufficient credits").
		AddRow(2, "outro", 0, 0, 0.0, "skipped", "")
	mock.ExpectQuery("SELECT ordinal, kind, audio_cached, video_cached").
		WithArgs("run-1").
		WillReturnRows(rows)

	records, err := l.Segments(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Segments returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if !records[0].AudioCached || !records[0].VideoCached || records[0].AudioSeconds != 9.5 {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].Status != "failed" || records[1].Error == "" {
		t.Errorf("record 1 = %+v", records[1])
	}
	if records[2].Kind != "outro" {
		t.Errorf("record 2 = %+v", records[2])
	}
}
