package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"screener/internal/indicator"
	"screener/internal/ratelimit"
	"screener/pkg/model"
)

const defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// ChartProvider fetches daily candles from a chart-style JSON API and
// derives snapshots from them. It has no fundamentals; earnings facts
// come from elsewhere (snapshot files or a richer provider).
type ChartProvider struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewChartProvider creates a chart API provider. An empty baseURL uses
// the default public endpoint.
func NewChartProvider(baseURL string, perMinute int) *ChartProvider {
	if baseURL == "" {
		baseURL = defaultChartBaseURL
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &ChartProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: ratelimit.NewLimiter("chart", perMinute),
	}
}

// Name returns the provider name
func (p *ChartProvider) Name() string {
	return "chart"
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyCandles fetches daily OHLCV data for the trailing days
func (p *ChartProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?interval=1d&range=%dd", p.baseURL, symbol, days)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "screener/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("rate limited"),
			Retryable: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	p.limiter.ResetBackoff()

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}
	if cr.Chart.Error != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("%s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description),
		}
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("empty result for %s", symbol)}
	}

	result := cr.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		candles = append(candles, model.Candle{
			Time:   time.Unix(ts, 0),
			Open:   quote.Open[i],
			High:   quote.High[i],
			Low:    quote.Low[i],
			Close:  quote.Close[i],
			Volume: quote.Volume[i],
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	return candles, nil
}

// GetSnapshot derives a scan tick from the trailing daily candles.
// Listing and earnings facts stay at their zero values; the chart API
// cannot supply them.
func (p *ChartProvider) GetSnapshot(ctx context.Context, symbol string) (*model.StockSnapshot, error) {
	candles, err := p.GetDailyCandles(ctx, symbol, 60)
	if err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("insufficient candles for %s", symbol)}
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	snap := &model.StockSnapshot{
		Symbol:           symbol,
		Name:             symbol,
		Price:            last.Close,
		Change:           last.Close - prev.Close,
		Volume:           last.Volume,
		LowerShadowRatio: indicator.LowerShadowRatio(last),
		Candles:          candles,
	}
	if prev.Close > 0 {
		snap.ChangeRate = (last.Close - prev.Close) / prev.Close * 100
	}
	return snap, nil
}

// GetQuarterlyEarnings is unsupported by the chart API
func (p *ChartProvider) GetQuarterlyEarnings(_ context.Context, _ string) ([]model.QuarterlyEarnings, error) {
	return nil, nil
}
