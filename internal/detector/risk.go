package detector

import (
	"math"

	"screener/internal/config"
	"screener/pkg/model"
)

// Risk levels. The stop-high scale tops out at VERY_HIGH; the
// turnaround scale stops at HIGH because the entry gates already cap
// its volatility.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskVeryHigh = "VERY_HIGH"
)

// AssessStopHighRisk scores a confirmed stop-high detection. Limit-band
// breakouts fail through overheating, so RSI and volume anomalies weigh
// heaviest.
func AssessStopHighRisk(snap *model.StockSnapshot, ind *model.IndicatorSet, cfg config.StopHighConfig) *model.RiskAssessment {
	var score float64
	var factors []string

	if ind.RSI > 80 {
		score += 25
		factors = append(factors, "RSI overheated")
	}
	if ind.VolumeRatio > 3.0 {
		score += 20
		factors = append(factors, "abnormal volume")
	}
	if snap.ChangeRate > cfg.SpikeRate {
		score += 20
		factors = append(factors, "extended move")
	}
	if lowerShadow(snap) > cfg.LowerShadowCeiling*2/3 {
		score += 15
		factors = append(factors, "meaningful lower shadow")
	}
	if len(snap.Candles) < 20 {
		score += 10
		factors = append(factors, "thin price history")
	}

	score = math.Min(score, 100)
	level, rec := stopHighLevel(score)
	return &model.RiskAssessment{
		Level:          level,
		Score:          score,
		Factors:        factors,
		Recommendation: rec,
	}
}

func stopHighLevel(score float64) (string, string) {
	switch {
	case score >= 75:
		return RiskVeryHigh, "skip or use minimum size; breakout is overheated"
	case score >= 50:
		return RiskHigh, "halve position size and use a tight stop"
	case score >= 25:
		return RiskMedium, "standard size with the pattern stop"
	default:
		return RiskLow, "trade within plan"
	}
}

// AssessTurnaroundRisk scores a confirmed turnaround detection. The
// thesis depends on a quiet, liquid tape, so it penalizes volume and
// volatility outliers and rewards clean signals.
func AssessTurnaroundRisk(snap *model.StockSnapshot, ind *model.IndicatorSet, lossRun int, cfg config.TurnaroundConfig) *model.RiskAssessment {
	var score float64
	var factors []string

	if ind.VolumeRatio < cfg.MinVolumeRatio || ind.VolumeRatio > cfg.MaxVolumeRatio {
		score += 25
		factors = append(factors, "volume ratio outside comfort band")
	}
	if math.Abs(snap.ChangeRate) > cfg.MaxChangeRate {
		score += 25
		factors = append(factors, "move larger than a moderate entry")
	}
	if ind.RSI > 70 {
		score += 20
		factors = append(factors, "RSI elevated")
	}
	if lossRun == cfg.MinLossQuarters {
		score += 15
		factors = append(factors, "shortest qualifying loss run")
	}

	score = math.Min(score, 100)

	assessment := &model.RiskAssessment{Score: score, Factors: factors}
	switch {
	case score >= 60:
		assessment.Level = RiskHigh
		assessment.Recommendation = "reduce size; turnaround thesis is stretched"
	case score >= 30:
		assessment.Level = RiskMedium
		assessment.Recommendation = "standard size, respect the max holding period"
	default:
		assessment.Level = RiskLow
		assessment.Recommendation = "clean signal; trade within plan"
	}
	return assessment
}
