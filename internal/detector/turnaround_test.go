package detector

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"screener/internal/config"
	"screener/internal/history"
	"screener/pkg/model"
)

func closesToCandles(closes []float64) []model.Candle {
	candles := make([]model.Candle, len(closes))
	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = model.Candle{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 6_000_000,
		}
	}
	return candles
}

func quarters(profits ...float64) []model.QuarterlyEarnings {
	qs := make([]model.QuarterlyEarnings, len(profits))
	base := time.Date(2024, 11, 14, 0, 0, 0, 0, time.UTC)
	for i, p := range profits {
		qs[i] = model.QuarterlyEarnings{
			Quarter:    fmt.Sprintf("Q%d", i+1),
			ReportDate: base.AddDate(0, 3*i, 0),
			NetProfit:  p,
		}
	}
	return qs
}

// baseTurnaroundSnapshot passes every turnaround gate with defaults:
// three loss quarters then a profit, price 2.5% above a rising MA5,
// moderate move on comfortable volume.
func baseTurnaroundSnapshot() *model.StockSnapshot {
	return &model.StockSnapshot{
		Symbol:     "3778.T",
		Name:       "Test Turnaround",
		Price:      890,
		ChangeRate: 2.8,
		Volume:     8_000_000,
		Quarters:   quarters(-120, -80, -60, 45),
		Candles:    closesToCandles([]float64{852, 856, 860, 864, 868, 872, 876}),
		Signals: &model.IndicatorSet{
			RSI:               62,
			MACD:              1.5,
			BollingerPosition: 0.4,
			VolumeRatio:       1.8,
			Trend:             model.TrendUp,
		},
	}
}

func newTurnaround() (*TurnaroundDetector, *history.MemoryStore) {
	cfg := config.DefaultConfig()
	store := history.NewMemoryStore(0)
	return NewTurnaroundDetector(cfg.Turnaround, store), store
}

func TestTurnaroundDetected(t *testing.T) {
	d, store := newTurnaround()
	ctx := context.Background()
	snap := baseTurnaroundSnapshot()

	v := d.Detect(ctx, snap)
	if !v.Detected {
		t.Fatalf("Expected detection, got rejection: %s", v.Reason)
	}
	if !strings.Contains(v.Reason, "turnaround confirmed") {
		t.Errorf("Unexpected reason: %q", v.Reason)
	}

	if v.EntryPrice != 890 {
		t.Errorf("Expected entry at market 890, got %v", v.EntryPrice)
	}
	if !within(v.ProfitTarget, 1112.5, 0.01) {
		t.Errorf("Expected target 1112.5, got %v", v.ProfitTarget)
	}
	if !within(v.StopLoss, 801, 0.01) {
		t.Errorf("Expected stop 801, got %v", v.StopLoss)
	}
	if v.MaxHoldDays != 45 {
		t.Errorf("Expected 45-day holding limit, got %d", v.MaxHoldDays)
	}

	// 2.8% sits low in the 1-8% band: 50 + 1.8/7*40
	if !within(v.Strength, 60.29, 0.01) {
		t.Errorf("Expected strength ~60.29, got %v", v.Strength)
	}
	// 3 loss quarters, 45 profit vs 86.67 average loss:
	// 30 + 10*3 + 51.92*0.2
	if !within(v.Confidence, 70.38, 0.01) {
		t.Errorf("Expected confidence ~70.38, got %v", v.Confidence)
	}

	recs, _ := store.Query(ctx, snap.Symbol, time.Time{}, model.PatternTurnaround)
	if len(recs) != 1 {
		t.Errorf("Expected 1 history record, got %d", len(recs))
	}
}

func TestTurnaroundRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.StockSnapshot)
		reason string
	}{
		{
			name:   "too few quarters",
			mutate: func(s *model.StockSnapshot) { s.Quarters = quarters(-60, 45) },
			reason: "insufficient earnings history",
		},
		{
			name:   "latest quarter still a loss",
			mutate: func(s *model.StockSnapshot) { s.Quarters = quarters(-120, -80, -60, -10) },
			reason: "not profitable",
		},
		{
			name:   "loss run too short",
			mutate: func(s *model.StockSnapshot) { s.Quarters = quarters(50, -60, 45) },
			reason: "consecutive loss quarters",
		},
		{
			name:   "price below MA5",
			mutate: func(s *model.StockSnapshot) { s.Price = 860 },
			reason: "below MA5",
		},
		{
			name:   "crossover too shallow",
			mutate: func(s *model.StockSnapshot) { s.Price = 880 },
			reason: "crossover",
		},
		{
			name: "MA5 falling",
			mutate: func(s *model.StockSnapshot) {
				s.Candles = closesToCandles([]float64{876, 872, 868, 864, 860, 856, 852})
			},
			reason: "MA5 not trending upward",
		},
		{
			name:   "no candle series",
			mutate: func(s *model.StockSnapshot) { s.Candles = nil },
			reason: "no price series",
		},
		{
			name:   "illiquid",
			mutate: func(s *model.StockSnapshot) { s.Volume = 1_000_000 },
			reason: "liquidity floor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTurnaround()
			snap := baseTurnaroundSnapshot()
			tt.mutate(snap)

			v := d.Detect(context.Background(), snap)
			if v.Detected {
				t.Fatal("Expected rejection, got detection")
			}
			if !strings.Contains(v.Reason, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, v.Reason)
			}
		})
	}
}

func TestTurnaroundEntryFailuresAggregated(t *testing.T) {
	d, _ := newTurnaround()
	snap := baseTurnaroundSnapshot()
	snap.ChangeRate = 0.5
	snap.Signals.RSI = 85
	snap.Signals.VolumeRatio = 5.0

	v := d.Detect(context.Background(), snap)
	if v.Detected {
		t.Fatal("Expected rejection")
	}
	if !strings.Contains(v.Reason, "entry conditions not met") {
		t.Fatalf("Expected aggregated entry rejection, got %q", v.Reason)
	}
	// Every failing sub-condition must be named, not just the first
	for _, want := range []string{"change rate", "RSI", "volume ratio"} {
		if !strings.Contains(v.Reason, want) {
			t.Errorf("Expected reason to name %q, got %q", want, v.Reason)
		}
	}
}

func TestTurnaroundTaxLossExclusion(t *testing.T) {
	d, _ := newTurnaround()
	snap := baseTurnaroundSnapshot()
	snap.Quarters = quarters(-100, -100, -100, -100, -100, -100, -100, 45)

	v := d.Detect(context.Background(), snap)
	if v.Detected {
		t.Fatal("Expected tax-loss exclusion")
	}
	if !strings.Contains(v.Reason, "tax losses") {
		t.Errorf("Expected tax-loss rejection, got %q", v.Reason)
	}
}

func TestTurnaroundVolatilityExclusion(t *testing.T) {
	// Widen the entry band so the volatility bound is the binding gate
	cfg := config.DefaultConfig().Turnaround
	cfg.MaxChangeRate = 30
	d := NewTurnaroundDetector(cfg, history.NewMemoryStore(0))

	snap := baseTurnaroundSnapshot()
	snap.ChangeRate = 20

	v := d.Detect(context.Background(), snap)
	if v.Detected {
		t.Fatal("Expected volatility exclusion")
	}
	if !strings.Contains(v.Reason, "too volatile") {
		t.Errorf("Expected volatility rejection, got %q", v.Reason)
	}
}

func TestTurnaroundDedupWindow(t *testing.T) {
	ctx := context.Background()

	seed := func(age time.Duration) (*TurnaroundDetector, *history.MemoryStore) {
		d, store := newTurnaround()
		store.Record(ctx, model.HistoryRecord{
			ID:        uuid.NewString(),
			Symbol:    "3778.T",
			Pattern:   model.PatternTurnaround,
			Timestamp: time.Now().Add(-age),
			Price:     850,
		})
		return d, store
	}

	// 5 months ago: still inside the ~6-month window
	d, _ := seed(150 * 24 * time.Hour)
	v := d.Detect(ctx, baseTurnaroundSnapshot())
	if v.Detected {
		t.Fatal("Expected dedup rejection for a 5-month-old detection")
	}
	if !strings.Contains(v.Reason, "already detected within dedup window") {
		t.Errorf("Expected dedup rejection, got %q", v.Reason)
	}

	// 7 months ago: outside the window, detection may repeat
	d, _ = seed(210 * 24 * time.Hour)
	if v := d.Detect(ctx, baseTurnaroundSnapshot()); !v.Detected {
		t.Errorf("Expected detection past the dedup window, got: %s", v.Reason)
	}
}

func TestLegacyTurnaround(t *testing.T) {
	cfg := config.DefaultConfig()
	d := NewLegacyTurnaroundDetector(cfg.Turnaround)
	ctx := context.Background()

	snap := &model.StockSnapshot{
		Symbol:   "3778.T",
		Price:    890,
		Quarters: quarters(-60, 45),
	}
	if v := d.Detect(ctx, snap); !v.Detected {
		t.Fatalf("Expected legacy detection, got: %s", v.Reason)
	}

	snap.Quarters = quarters(10, 45)
	if v := d.Detect(ctx, snap); v.Detected {
		t.Error("Expected rejection without a preceding loss quarter")
	}
}
