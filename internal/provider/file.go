package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"screener/pkg/model"
)

// FileProvider serves snapshots from a JSON file keyed by symbol. Used
// for offline scans and for feeding the detectors externally derived
// facts (listing age, earnings windows, quarterly series) that live
// providers cannot supply.
type FileProvider struct {
	snapshots map[string]*model.StockSnapshot
}

// NewFileProvider loads a snapshot universe from a JSON file holding
// either a list of snapshots or a symbol-keyed object.
func NewFileProvider(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	byName := make(map[string]*model.StockSnapshot)

	var list []*model.StockSnapshot
	if err := json.Unmarshal(data, &list); err == nil {
		for _, s := range list {
			byName[s.Symbol] = s
		}
		return &FileProvider{snapshots: byName}, nil
	}

	var keyed map[string]*model.StockSnapshot
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}
	for sym, s := range keyed {
		if s.Symbol == "" {
			s.Symbol = sym
		}
		byName[s.Symbol] = s
	}
	return &FileProvider{snapshots: byName}, nil
}

// Name returns the provider name
func (p *FileProvider) Name() string {
	return "file"
}

// Symbols returns every symbol in the file
func (p *FileProvider) Symbols() []string {
	out := make([]string, 0, len(p.snapshots))
	for sym := range p.snapshots {
		out = append(out, sym)
	}
	return out
}

// GetSnapshot returns the stored snapshot for a symbol
func (p *FileProvider) GetSnapshot(_ context.Context, symbol string) (*model.StockSnapshot, error) {
	snap, ok := p.snapshots[symbol]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("unknown symbol %s", symbol)}
	}
	return snap, nil
}

// GetDailyCandles returns the stored candle series
func (p *FileProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	snap, err := p.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	candles := snap.Candles
	if days > 0 && len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

// GetQuarterlyEarnings returns the stored quarterly series
func (p *FileProvider) GetQuarterlyEarnings(ctx context.Context, symbol string) ([]model.QuarterlyEarnings, error) {
	snap, err := p.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return snap.Quarters, nil
}
