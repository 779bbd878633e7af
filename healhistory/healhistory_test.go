package healhistory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/use-agent/webtest/storage"
	"github.com/use-agent/webtest/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "heal.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, telemetry.NewRecorder("test"))
}

func TestRecordOutcome_RunningMean(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordOutcome(ctx, "submit", "https://app.com/page", "aria-label", true, 100); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := s.RecordOutcome(ctx, "submit", "https://app.com/page", "aria-label", true, 300); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	stats, err := s.BestStrategies(ctx, "submit", "https://app.com/page", 3)
	if err != nil {
		t.Fatalf("BestStrategies() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d stats, want 1", len(stats))
	}
	if stats[0].AvgHealTimeMS != 200 {
		t.Errorf("AvgHealTimeMS = %v, want 200", stats[0].AvgHealTimeMS)
	}
	if stats[0].SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", stats[0].SuccessCount)
	}
}

func TestBestStrategies_OrderedBySuccessRate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordOutcome(ctx, "submit", "https://app.com/page", "aria-label", true, 100); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := s.RecordOutcome(ctx, "submit", "https://app.com/page", "id-class", false, 500); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	stats, err := s.BestStrategies(ctx, "submit", "https://app.com/page", 3)
	if err != nil {
		t.Fatalf("BestStrategies() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	if stats[0].Strategy != "aria-label" {
		t.Errorf("best strategy = %q, want aria-label", stats[0].Strategy)
	}
}

func TestSuccessRate_NoHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rate, err := s.SuccessRate(ctx, "submit", "https://app.com/page", "aria-label")
	if err != nil {
		t.Fatalf("SuccessRate() error = %v", err)
	}
	if rate != 0.0 {
		t.Errorf("SuccessRate = %v, want 0.0", rate)
	}
}
