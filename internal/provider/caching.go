package provider

import (
	"context"
	"fmt"
	"log"
	"time"

	"screener/internal/cache"
	"screener/pkg/model"
)

// CachingProvider wraps a Provider with TTL caching. Quotes and
// candles move fast (1h default); quarterly earnings barely move at
// all (1 week default). Each key expires and invalidates on its own.
type CachingProvider struct {
	inner       Provider
	cache       cache.Cache
	quoteTTL    time.Duration
	earningsTTL time.Duration
}

// NewCachingProvider creates the caching wrapper
func NewCachingProvider(inner Provider, c cache.Cache, quoteTTL, earningsTTL time.Duration) *CachingProvider {
	if quoteTTL <= 0 {
		quoteTTL = time.Hour
	}
	if earningsTTL <= 0 {
		earningsTTL = 7 * 24 * time.Hour
	}
	return &CachingProvider{
		inner:       inner,
		cache:       c,
		quoteTTL:    quoteTTL,
		earningsTTL: earningsTTL,
	}
}

// Name returns the wrapped provider's name
func (p *CachingProvider) Name() string {
	return p.inner.Name()
}

// GetSnapshot returns the cached snapshot or fetches a fresh one
func (p *CachingProvider) GetSnapshot(ctx context.Context, symbol string) (*model.StockSnapshot, error) {
	key := "snapshot:" + symbol

	var cached model.StockSnapshot
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	} else if err != nil {
		log.Printf("[CACHE] snapshot read for %s failed: %v", symbol, err)
	}

	snap, err := p.inner.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, snap, p.quoteTTL); err != nil {
		log.Printf("[CACHE] snapshot write for %s failed: %v", symbol, err)
	}
	return snap, nil
}

// GetDailyCandles returns cached candles or fetches fresh ones
func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	key := fmt.Sprintf("candles:%s:%d", symbol, days)

	var cached []model.Candle
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	candles, err := p.inner.GetDailyCandles(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, candles, p.quoteTTL); err != nil {
		log.Printf("[CACHE] candle write for %s failed: %v", symbol, err)
	}
	return candles, nil
}

// GetQuarterlyEarnings returns the cached quarterly series or fetches
// a fresh one
func (p *CachingProvider) GetQuarterlyEarnings(ctx context.Context, symbol string) ([]model.QuarterlyEarnings, error) {
	key := "earnings:" + symbol

	var cached []model.QuarterlyEarnings
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	quarters, err := p.inner.GetQuarterlyEarnings(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, quarters, p.earningsTTL); err != nil {
		log.Printf("[CACHE] earnings write for %s failed: %v", symbol, err)
	}
	return quarters, nil
}

// Invalidate drops every cached entry for one symbol
func (p *CachingProvider) Invalidate(ctx context.Context, symbol string) {
	for _, key := range []string{"snapshot:" + symbol, "earnings:" + symbol} {
		if err := p.cache.Delete(ctx, key); err != nil {
			log.Printf("[CACHE] invalidating %s failed: %v", key, err)
		}
	}
}
