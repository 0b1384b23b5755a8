package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"screener/pkg/model"
)

func record(symbol string, pattern model.PatternID, ts time.Time) model.HistoryRecord {
	return model.HistoryRecord{
		ID:        fmt.Sprintf("%s-%d", symbol, ts.UnixNano()),
		Symbol:    symbol,
		Pattern:   pattern,
		Timestamp: ts,
		Price:     100,
	}
}

func TestMemoryStoreNewestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := record("7203.T", model.PatternStopHigh, base.Add(time.Duration(i)*time.Hour))
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := store.Query(ctx, "7203.T", time.Time{}, "")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Error("Expected newest-first ordering")
		}
	}
}

func TestMemoryStoreEviction(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := record("6758.T", model.PatternTurnaround, base.Add(time.Duration(i)*time.Hour))
		store.Record(ctx, rec)
	}

	if store.Len("6758.T") != 3 {
		t.Errorf("Expected 3 records after eviction, got %d", store.Len("6758.T"))
	}

	got, _ := store.Query(ctx, "6758.T", time.Time{}, "")
	// The two oldest records must be gone
	oldest := got[len(got)-1]
	if oldest.Timestamp.Before(base.Add(2 * time.Hour)) {
		t.Errorf("Expected oldest surviving record at %v, got %v",
			base.Add(2*time.Hour), oldest.Timestamp)
	}
}

func TestMemoryStoreDefaultCapacity(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < DefaultCapacity+10; i++ {
		store.Record(ctx, record("9984.T", model.PatternStopHigh, base.Add(time.Duration(i)*time.Minute)))
	}

	if store.Len("9984.T") != DefaultCapacity {
		t.Errorf("Expected capacity %d, got %d", DefaultCapacity, store.Len("9984.T"))
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	store.Record(ctx, record("7203.T", model.PatternStopHigh, base))
	store.Record(ctx, record("7203.T", model.PatternTurnaround, base.Add(time.Hour)))
	store.Record(ctx, record("7203.T", model.PatternStopHigh, base.Add(2*time.Hour)))

	byPattern, _ := store.Query(ctx, "7203.T", time.Time{}, model.PatternStopHigh)
	if len(byPattern) != 2 {
		t.Errorf("Expected 2 stop_high records, got %d", len(byPattern))
	}

	bySince, _ := store.Query(ctx, "7203.T", base.Add(30*time.Minute), "")
	if len(bySince) != 2 {
		t.Errorf("Expected 2 records after cutoff, got %d", len(bySince))
	}

	unknown, _ := store.Query(ctx, "0000.T", time.Time{}, "")
	if len(unknown) != 0 {
		t.Errorf("Expected no records for unknown symbol, got %d", len(unknown))
	}
}
