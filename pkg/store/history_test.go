package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := OpenHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginAndSealRun(t *testing.T) {
	ctx := context.Background()
	s := newTestHistoryStore(t)

	id, err := s.BeginRun(ctx, "pair1", "disk1", DirectionLocalToExternal)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	if err := s.TransitionRun(ctx, id, RunStatusInProgress); err != nil {
		t.Fatalf("TransitionRun failed: %v", err)
	}

	if err := s.SealRun(ctx, id, RunStatusCompleted, 3, 1024, ""); err != nil {
		t.Fatalf("SealRun failed: %v", err)
	}

	history, err := s.GetHistory(ctx, "pair1", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history))
	}
	if history[0].Status != RunStatusCompleted || history[0].FilesCount != 3 {
		t.Errorf("unexpected history record: %+v", history[0])
	}
}

func TestStatisticsRunningAverage(t *testing.T) {
	ctx := context.Background()
	s := newTestHistoryStore(t)

	date := "2026-07-31"
	if err := s.UpsertStatistics(ctx, date, "pair1", 1, 0, 10, 1000, 100); err != nil {
		t.Fatalf("UpsertStatistics failed: %v", err)
	}
	if err := s.UpsertStatistics(ctx, date, "pair1", 1, 0, 5, 500, 300); err != nil {
		t.Fatalf("UpsertStatistics failed: %v", err)
	}

	stats, err := s.GetStatistics(ctx, "pair1", date, date)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 statistics row, got %d", len(stats))
	}
	if stats[0].Runs != 2 {
		t.Errorf("expected 2 runs, got %d", stats[0].Runs)
	}
	wantAvg := 200.0 // (100*1 + 300) / 2
	if stats[0].AvgDurationMs != wantAvg {
		t.Errorf("expected avg duration %v, got %v", wantAvg, stats[0].AvgDurationMs)
	}
	if stats[0].TotalFiles != 15 || stats[0].TotalBytes != 1500 {
		t.Errorf("unexpected totals: %+v", stats[0])
	}
}
