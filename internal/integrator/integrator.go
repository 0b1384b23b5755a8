// Package integrator fuses pattern detections with technical
// sub-scores into one ranked, risk-annotated trading signal.
package integrator

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"screener/internal/config"
	"screener/internal/detector"
	"screener/internal/indicator"
	"screener/pkg/model"
)

// Component weights for the composite strength
const (
	weightLogic     = 0.40
	weightTechnical = 0.30
	weightTimeframe = 0.20
	weightVolume    = 0.10
)

// Action cut points on composite strength
const (
	strongBuyFloor = 80.0
	buyFloor       = 60.0
	watchCeiling   = 40.0
	sellCeiling    = 20.0

	weakTechnicalFloor = 30.0
)

// Integrator runs every detector against one snapshot and combines the
// verdicts with technical sub-scores into a TradingSignal.
type Integrator struct {
	cfg       config.IntegratorConfig
	detectors []detector.Detector
}

// New creates an integrator over the given detectors. Order decides
// nothing; detectors run concurrently per evaluation.
func New(cfg config.IntegratorConfig, detectors ...detector.Detector) *Integrator {
	return &Integrator{cfg: cfg, detectors: detectors}
}

// Evaluate produces the final signal for one snapshot. It never
// returns an error for ordinary "not detected" outcomes; unexpected
// internal failures become action=ERROR signals.
func (in *Integrator) Evaluate(ctx context.Context, snap *model.StockSnapshot) (sig model.TradingSignal) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[INTEGRATOR] recovered evaluating %s: %v", snap.Symbol, r)
			sig = model.TradingSignal{
				ID:             uuid.NewString(),
				Symbol:         snap.Symbol,
				Name:           snap.Name,
				Action:         model.ActionError,
				ExecutionNotes: []string{fmt.Sprintf("evaluation error: %v", r)},
				GeneratedAt:    time.Now(),
			}
		}
	}()
	return in.evaluate(ctx, snap)
}

func (in *Integrator) evaluate(ctx context.Context, snap *model.StockSnapshot) model.TradingSignal {
	verdicts := in.runDetectors(ctx, snap)
	ind := snapIndicators(snap)

	scores := model.ComponentScores{
		Logic:     logicScore(verdicts),
		Technical: technicalScore(ind),
		Timeframe: timeframeScore(snap, ind),
		Volume:    volumeScore(ind),
	}

	strength := weightLogic*scores.Logic +
		weightTechnical*scores.Technical +
		weightTimeframe*scores.Timeframe +
		weightVolume*scores.Volume
	strength = math.Round(strength*100) / 100

	action, notes := classify(strength, scores, verdicts)

	sig := model.TradingSignal{
		ID:          uuid.NewString(),
		Symbol:      snap.Symbol,
		Name:        snap.Name,
		Action:      action,
		Strength:    strength,
		Confidence:  confidence(verdicts, strength),
		Components:  scores,
		Verdicts:    verdicts,
		GeneratedAt: time.Now(),
	}

	in.price(&sig, snap, verdicts)
	in.size(&sig)

	sig.ExecutionNotes = append(sig.ExecutionNotes, notes...)
	if sig.RiskReward < in.cfg.MinRiskReward {
		sig.Executable = false
		sig.ExecutionNotes = append(sig.ExecutionNotes,
			fmt.Sprintf("risk/reward %.2f below %.1f minimum", sig.RiskReward, in.cfg.MinRiskReward))
	} else if action == model.ActionStrongBuy || action == model.ActionBuy {
		sig.Executable = true
	}

	if risk := bestRisk(verdicts); risk != nil {
		sig.Risk = risk
	}
	return sig
}

// runDetectors fans out across detectors; each symbol's chain is
// internally sequential, detectors across one snapshot are not.
func (in *Integrator) runDetectors(ctx context.Context, snap *model.StockSnapshot) []model.Verdict {
	verdicts := make([]model.Verdict, len(in.detectors))

	var wg sync.WaitGroup
	for i, d := range in.detectors {
		wg.Add(1)
		go func(i int, d detector.Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[INTEGRATOR] recovered %s detector on %s: %v", d.ID(), snap.Symbol, r)
					verdicts[i] = model.Verdict{
						Pattern: d.ID(),
						Reason:  fmt.Sprintf("evaluation error: %v", r),
					}
				}
			}()
			verdicts[i] = d.Detect(ctx, snap)
		}(i, d)
	}
	wg.Wait()

	return verdicts
}

// price sets entry/target/stop. A detected enhanced pattern supplies
// its own levels; otherwise the integrator's fixed pair applies to the
// current price.
func (in *Integrator) price(sig *model.TradingSignal, snap *model.StockSnapshot, verdicts []model.Verdict) {
	for _, v := range verdicts {
		if v.Detected && (v.Pattern == model.PatternStopHigh || v.Pattern == model.PatternTurnaround) {
			sig.EntryPrice = v.EntryPrice
			sig.ProfitTarget = v.ProfitTarget
			sig.StopLoss = v.StopLoss
			break
		}
	}
	if sig.EntryPrice == 0 {
		sig.EntryPrice = snap.Price
		sig.ProfitTarget = snap.Price * (1 + in.cfg.ProfitTargetRate/100)
		sig.StopLoss = snap.Price * (1 - in.cfg.StopLossRate/100)
	}

	riskPerShare := sig.EntryPrice - sig.StopLoss
	if riskPerShare > 0 {
		sig.RiskReward = math.Round((sig.ProfitTarget-sig.EntryPrice)/riskPerShare*100) / 100
	}
}

// size caps the trade at the configured portfolio risk and exposure
func (in *Integrator) size(sig *model.TradingSignal) {
	riskPerShare := sig.EntryPrice - sig.StopLoss
	if riskPerShare <= 0 || in.cfg.PortfolioValue <= 0 {
		return
	}

	maxRisk := in.cfg.PortfolioValue * in.cfg.MaxRiskPerTrade
	shares := int(maxRisk / riskPerShare)

	// Exposure cap wins over the risk budget
	maxExposureAmount := in.cfg.PortfolioValue * in.cfg.MaxExposure
	if float64(shares)*sig.EntryPrice > maxExposureAmount {
		shares = int(maxExposureAmount / sig.EntryPrice)
	}
	if shares < 0 {
		shares = 0
	}

	sig.Shares = shares
	sig.Exposure = float64(shares) * sig.EntryPrice / in.cfg.PortfolioValue
}

// classify maps strength to an action, then applies the pattern
// upgrade and weak-technical downgrade rules.
func classify(strength float64, scores model.ComponentScores, verdicts []model.Verdict) (model.Action, []string) {
	var action model.Action
	switch {
	case strength >= strongBuyFloor:
		action = model.ActionStrongBuy
	case strength >= buyFloor:
		action = model.ActionBuy
	case strength <= sellCeiling:
		action = model.ActionSell
	case strength <= watchCeiling:
		action = model.ActionWatch
	default:
		action = model.ActionHold
	}

	var notes []string

	if action == model.ActionBuy && enhancedDetected(verdicts, model.PatternStopHigh) {
		action = model.ActionStrongBuy
		notes = append(notes, "upgraded: stop-high pattern independently confirmed")
	}

	if scores.Technical < weakTechnicalFloor {
		switch action {
		case model.ActionStrongBuy:
			action = model.ActionBuy
			notes = append(notes, "downgraded: technical score below 30")
		case model.ActionBuy:
			action = model.ActionWatch
			notes = append(notes, "downgraded: technical score below 30")
		}
	}

	return action, notes
}

func enhancedDetected(verdicts []model.Verdict, pattern model.PatternID) bool {
	for _, v := range verdicts {
		if v.Detected && v.Pattern == pattern {
			return true
		}
	}
	return false
}

// logicScore converts detector verdicts into the 0-100 logic component.
// Enhanced patterns dominate; legacy variants only corroborate.
func logicScore(verdicts []model.Verdict) float64 {
	var score float64
	for _, v := range verdicts {
		if !v.Detected {
			continue
		}
		switch v.Pattern {
		case model.PatternStopHigh, model.PatternTurnaround:
			score += v.Strength * 0.8
		case model.PatternStopHighLegacy, model.PatternTurnaroundLegacy:
			score += v.Strength * 0.25
		}
	}
	return math.Min(score, 100)
}

// technicalScore grades the indicator set on a 0-100 scale. Strictly
// non-decreasing in each favorable input.
func technicalScore(ind *model.IndicatorSet) float64 {
	score := 50.0

	// RSI: reward the healthy band, punish the extremes
	switch {
	case ind.RSI >= 40 && ind.RSI <= 70:
		score += 15
	case ind.RSI > 80 || ind.RSI < 25:
		score -= 15
	}

	if ind.MACD > 0 {
		score += 15
	} else if ind.MACD < 0 {
		score -= 10
	}

	// Bollinger position: upper half of the band without riding it
	if ind.BollingerPosition > 0 && ind.BollingerPosition < 0.9 {
		score += 10
	} else if ind.BollingerPosition <= -0.9 {
		score -= 10
	}

	switch ind.Trend {
	case model.TrendUp:
		score += 10
	case model.TrendDown:
		score -= 15
	}

	return math.Max(0, math.Min(100, score))
}

// timeframeScore measures agreement between the short trend and the
// longer daily series
func timeframeScore(snap *model.StockSnapshot, ind *model.IndicatorSet) float64 {
	dayUp := snap.ChangeRate > 0

	switch ind.Trend {
	case model.TrendUp:
		if dayUp {
			return 85
		}
		return 55
	case model.TrendDown:
		if dayUp {
			return 35
		}
		return 15
	default:
		if dayUp {
			return 60
		}
		return 45
	}
}

// volumeScore grades volume confirmation
func volumeScore(ind *model.IndicatorSet) float64 {
	switch {
	case ind.VolumeRatio >= 1.5 && ind.VolumeRatio <= 3.0:
		return 85
	case ind.VolumeRatio > 3.0:
		return 55 // climax volume is confirmation with a caveat
	case ind.VolumeRatio >= 1.0:
		return 60
	default:
		return 35
	}
}

// confidence maps verdict confidence and composite strength to 0..1
func confidence(verdicts []model.Verdict, strength float64) float64 {
	best := 0.0
	for _, v := range verdicts {
		if v.Detected && v.Confidence > best {
			best = v.Confidence
		}
	}
	c := (best*0.6 + strength*0.4) / 100
	return math.Round(c*100) / 100
}

// bestRisk picks the risk assessment from the strongest detected verdict
func bestRisk(verdicts []model.Verdict) *model.RiskAssessment {
	var best *model.RiskAssessment
	bestStrength := -1.0
	for _, v := range verdicts {
		if v.Detected && v.Risk != nil && v.Strength > bestStrength {
			best = v.Risk
			bestStrength = v.Strength
		}
	}
	return best
}

func snapIndicators(snap *model.StockSnapshot) *model.IndicatorSet {
	if snap.Signals != nil {
		return snap.Signals
	}
	return indicator.Compute(snap.Candles)
}
