package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSnapshotFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileProviderList(t *testing.T) {
	path := writeSnapshotFile(t, `[
		{"symbol": "7203.T", "name": "Toyota", "price": 2800, "change_rate": 1.2, "volume": 12000000},
		{"symbol": "6758.T", "name": "Sony", "price": 13500, "change_rate": -0.5, "volume": 4000000}
	]`)

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}

	if len(p.Symbols()) != 2 {
		t.Errorf("Expected 2 symbols, got %d", len(p.Symbols()))
	}

	snap, err := p.GetSnapshot(context.Background(), "7203.T")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.Price != 2800 {
		t.Errorf("Expected price 2800, got %v", snap.Price)
	}

	if _, err := p.GetSnapshot(context.Background(), "0000.T"); err == nil {
		t.Error("Expected an error for an unknown symbol")
	}
}

func TestFileProviderKeyedMap(t *testing.T) {
	path := writeSnapshotFile(t, `{
		"285A.T": {"price": 1500, "change_rate": 20, "newly_listed": true}
	}`)

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}

	// Map keys fill in missing symbol fields
	snap, err := p.GetSnapshot(context.Background(), "285A.T")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.Symbol != "285A.T" {
		t.Errorf("Expected symbol backfilled from key, got %q", snap.Symbol)
	}
	if !snap.NewlyListed {
		t.Error("Expected newly_listed to survive the round trip")
	}
}

func TestFileProviderBadJSON(t *testing.T) {
	path := writeSnapshotFile(t, `not json`)
	if _, err := NewFileProvider(path); err == nil {
		t.Error("Expected a parse error")
	}
}
