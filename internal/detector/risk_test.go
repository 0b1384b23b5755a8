package detector

import (
	"testing"

	"screener/internal/config"
	"screener/pkg/model"
)

func TestAssessStopHighRisk(t *testing.T) {
	cfg := config.DefaultConfig().StopHigh

	tests := []struct {
		name      string
		snap      *model.StockSnapshot
		ind       *model.IndicatorSet
		wantLevel string
		wantScore float64
	}{
		{
			name: "clean breakout",
			snap: &model.StockSnapshot{ChangeRate: 18, LowerShadowRatio: 0.02},
			ind:  &model.IndicatorSet{RSI: 60, VolumeRatio: 2.0},
			// only the thin price history factor fires
			wantLevel: RiskLow,
			wantScore: 10,
		},
		{
			name:      "overheated RSI",
			snap:      &model.StockSnapshot{ChangeRate: 18, LowerShadowRatio: 0.02},
			ind:       &model.IndicatorSet{RSI: 85, VolumeRatio: 2.0},
			wantLevel: RiskMedium,
			wantScore: 35,
		},
		{
			name:      "everything wrong at once",
			snap:      &model.StockSnapshot{ChangeRate: 25, LowerShadowRatio: 0.12},
			ind:       &model.IndicatorSet{RSI: 85, VolumeRatio: 3.5},
			wantLevel: RiskVeryHigh,
			wantScore: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessStopHighRisk(tt.snap, tt.ind, cfg)
			if got.Level != tt.wantLevel {
				t.Errorf("Expected level %s, got %s (factors: %v)", tt.wantLevel, got.Level, got.Factors)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Expected score %v, got %v", tt.wantScore, got.Score)
			}
			if got.Recommendation == "" {
				t.Error("Expected a recommendation")
			}
		})
	}
}

func TestAssessTurnaroundRisk(t *testing.T) {
	cfg := config.DefaultConfig().Turnaround

	tests := []struct {
		name      string
		snap      *model.StockSnapshot
		ind       *model.IndicatorSet
		lossRun   int
		wantLevel string
	}{
		{
			name:      "clean signal",
			snap:      &model.StockSnapshot{ChangeRate: 2.8},
			ind:       &model.IndicatorSet{RSI: 62, VolumeRatio: 1.8},
			lossRun:   3,
			wantLevel: RiskLow,
		},
		{
			name:      "shortest qualifying loss run",
			snap:      &model.StockSnapshot{ChangeRate: 2.8},
			ind:       &model.IndicatorSet{RSI: 72, VolumeRatio: 1.8},
			lossRun:   2,
			wantLevel: RiskMedium, // RSI elevated + minimum loss run
		},
		{
			name:      "stretched thesis",
			snap:      &model.StockSnapshot{ChangeRate: 10},
			ind:       &model.IndicatorSet{RSI: 72, VolumeRatio: 4.0},
			lossRun:   3,
			wantLevel: RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessTurnaroundRisk(tt.snap, tt.ind, tt.lossRun, cfg)
			if got.Level != tt.wantLevel {
				t.Errorf("Expected level %s, got %s (score %v, factors: %v)",
					tt.wantLevel, got.Level, got.Score, got.Factors)
			}
		})
	}
}
