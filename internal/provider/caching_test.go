package provider

import (
	"context"
	"testing"
	"time"

	"screener/internal/cache"
	"screener/pkg/model"
)

// countingProvider records how often each fetch path is hit
type countingProvider struct {
	snapshotCalls int
	earningsCalls int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) GetSnapshot(_ context.Context, symbol string) (*model.StockSnapshot, error) {
	p.snapshotCalls++
	return &model.StockSnapshot{Symbol: symbol, Price: 1500}, nil
}

func (p *countingProvider) GetDailyCandles(_ context.Context, _ string, _ int) ([]model.Candle, error) {
	return nil, nil
}

func (p *countingProvider) GetQuarterlyEarnings(_ context.Context, _ string) ([]model.QuarterlyEarnings, error) {
	p.earningsCalls++
	return []model.QuarterlyEarnings{{Quarter: "2026Q1", NetProfit: 45}}, nil
}

func TestCachingProviderSnapshot(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachingProvider(inner, cache.NewMemoryCache(), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := p.GetSnapshot(ctx, "7203.T")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	second, err := p.GetSnapshot(ctx, "7203.T")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	if inner.snapshotCalls != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", inner.snapshotCalls)
	}
	if first.Price != second.Price || second.Symbol != "7203.T" {
		t.Errorf("Expected identical cached snapshot, got %+v", second)
	}
}

func TestCachingProviderEarnings(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachingProvider(inner, cache.NewMemoryCache(), time.Minute, time.Hour)
	ctx := context.Background()

	p.GetQuarterlyEarnings(ctx, "3778.T")
	quarters, err := p.GetQuarterlyEarnings(ctx, "3778.T")
	if err != nil {
		t.Fatalf("GetQuarterlyEarnings failed: %v", err)
	}

	if inner.earningsCalls != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", inner.earningsCalls)
	}
	if len(quarters) != 1 || quarters[0].NetProfit != 45 {
		t.Errorf("Expected cached quarterly series, got %+v", quarters)
	}
}

func TestCachingProviderInvalidate(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachingProvider(inner, cache.NewMemoryCache(), time.Minute, time.Hour)
	ctx := context.Background()

	p.GetSnapshot(ctx, "7203.T")
	p.Invalidate(ctx, "7203.T")
	p.GetSnapshot(ctx, "7203.T")

	if inner.snapshotCalls != 2 {
		t.Errorf("Expected a refetch after invalidation, got %d calls", inner.snapshotCalls)
	}
}

func TestCachingProviderExpiry(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachingProvider(inner, cache.NewMemoryCache(), 10*time.Millisecond, time.Hour)
	ctx := context.Background()

	p.GetSnapshot(ctx, "7203.T")
	time.Sleep(20 * time.Millisecond)
	p.GetSnapshot(ctx, "7203.T")

	if inner.snapshotCalls != 2 {
		t.Errorf("Expected a refetch after TTL expiry, got %d calls", inner.snapshotCalls)
	}
}
