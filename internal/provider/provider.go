// Package provider supplies market data to the detection core. The
// core treats providers as external collaborators that may fail or
// return stale data; everything here is behind the Provider interface.
package provider

import (
	"context"

	"screener/pkg/model"
)

// Provider defines the market-data contract the core consumes
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetSnapshot fetches the current scan tick for a symbol,
	// including whatever candle series the source can supply.
	GetSnapshot(ctx context.Context, symbol string) (*model.StockSnapshot, error)

	// GetDailyCandles fetches daily OHLCV data for the specified
	// number of days
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)

	// GetQuarterlyEarnings fetches the trailing quarterly earnings
	// series, oldest first. Providers without fundamentals return an
	// empty slice, not an error.
	GetQuarterlyEarnings(ctx context.Context, symbol string) ([]model.QuarterlyEarnings, error)
}

// ProviderError wraps a provider failure with retryability
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
