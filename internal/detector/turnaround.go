package detector

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"screener/internal/config"
	"screener/internal/history"
	"screener/internal/indicator"
	"screener/pkg/model"
)

// TurnaroundDetector screens for the loss-to-profit earnings turnaround
// confirmed by a 5-period moving-average crossover. Quarters on the
// snapshot are ordered oldest first; the last entry is the latest
// reported quarter.
type TurnaroundDetector struct {
	cfg   config.TurnaroundConfig
	store history.Store
}

// NewTurnaroundDetector creates the enhanced turnaround detector
func NewTurnaroundDetector(cfg config.TurnaroundConfig, store history.Store) *TurnaroundDetector {
	return &TurnaroundDetector{cfg: cfg, store: store}
}

// ID returns the pattern id
func (d *TurnaroundDetector) ID() model.PatternID {
	return model.PatternTurnaround
}

// Detect runs the full gate chain against one snapshot
func (d *TurnaroundDetector) Detect(ctx context.Context, snap *model.StockSnapshot) model.Verdict {
	return safeDetect(model.PatternTurnaround, snap.Symbol, func() model.Verdict {
		return d.detect(ctx, snap)
	})
}

func (d *TurnaroundDetector) detect(ctx context.Context, snap *model.StockSnapshot) model.Verdict {
	pid := model.PatternTurnaround

	// Gate 1: turnaround shape in the quarterly series
	turn, evidence, rej, ok := d.checkTurnaround(snap)
	if !ok {
		return rej
	}

	// Gate 2: MA5 crossover confirmation
	if rej, ok := d.checkCrossover(snap, evidence); !ok {
		return rej
	}

	// Gate 3: entry-condition validation. All failing sub-conditions
	// are reported, not just the first.
	ind := indicators(snap)
	evidence["rsi"] = ind.RSI
	evidence["volume_ratio"] = ind.VolumeRatio

	var failures []string
	if snap.ChangeRate < d.cfg.MinChangeRate || snap.ChangeRate > d.cfg.MaxChangeRate {
		failures = append(failures, fmt.Sprintf("change rate %.1f%% outside [%.0f%%, %.0f%%]",
			snap.ChangeRate, d.cfg.MinChangeRate, d.cfg.MaxChangeRate))
	}
	if ind.RSI < d.cfg.MinRSI || ind.RSI > d.cfg.MaxRSI {
		failures = append(failures, fmt.Sprintf("RSI %.1f outside [%.0f, %.0f]",
			ind.RSI, d.cfg.MinRSI, d.cfg.MaxRSI))
	}
	if ind.VolumeRatio < d.cfg.MinVolumeRatio || ind.VolumeRatio > d.cfg.MaxVolumeRatio {
		failures = append(failures, fmt.Sprintf("volume ratio %.2f outside [%.1f, %.1f]",
			ind.VolumeRatio, d.cfg.MinVolumeRatio, d.cfg.MaxVolumeRatio))
	}
	if len(failures) > 0 {
		return reject(pid, "entry conditions not met: "+strings.Join(failures, "; "), evidence)
	}

	// Gate 4: exclusion rules
	if rej, ok := d.checkExclusions(ctx, snap, turn, evidence); !ok {
		return rej
	}

	// Signal synthesis
	verdict := d.synthesize(snap, turn, ind, evidence)

	rec := model.HistoryRecord{
		ID:        uuid.NewString(),
		Symbol:    snap.Symbol,
		Pattern:   model.PatternTurnaround,
		Timestamp: time.Now(),
		Price:     snap.Price,
		Strength:  verdict.Strength,
		Reason:    verdict.Reason,
	}
	if err := d.store.Record(ctx, rec); err != nil {
		log.Printf("[DETECTOR] turnaround: recording detection for %s failed: %v", snap.Symbol, err)
	}

	return verdict
}

// turnaroundFacts carries the quarterly evidence between gates
type turnaroundFacts struct {
	lossRun      int     // consecutive loss quarters before the latest
	lossQuarters int     // loss quarters across the whole series
	totalLoss    float64 // cumulative loss magnitude (positive)
	latestProfit float64
	improvement  float64 // latest profit vs avg prior loss, percent, capped 200
	confidence   float64
}

func (d *TurnaroundDetector) checkTurnaround(snap *model.StockSnapshot) (turnaroundFacts, map[string]float64, model.Verdict, bool) {
	pid := model.PatternTurnaround
	var facts turnaroundFacts

	qs := snap.Quarters
	if len(qs) < d.cfg.MinLossQuarters+1 {
		return facts, nil, rejectf(pid, nil,
			"insufficient earnings history: %d quarters, need %d",
			len(qs), d.cfg.MinLossQuarters+1), false
	}

	latest := qs[len(qs)-1]
	if latest.NetProfit <= 0 {
		return facts, nil, rejectf(pid, map[string]float64{"latest_profit": latest.NetProfit},
			"latest quarter not profitable (%.1f)", latest.NetProfit), false
	}
	facts.latestProfit = latest.NetProfit

	// Count the run of losses immediately preceding the latest quarter
	var runLoss float64
	for i := len(qs) - 2; i >= 0 && qs[i].NetProfit < 0; i-- {
		facts.lossRun++
		runLoss += -qs[i].NetProfit
	}
	for _, q := range qs {
		if q.NetProfit < 0 {
			facts.lossQuarters++
			facts.totalLoss += -q.NetProfit
		}
	}

	evidence := map[string]float64{
		"latest_profit":   facts.latestProfit,
		"loss_run":        float64(facts.lossRun),
		"loss_quarters":   float64(facts.lossQuarters),
		"cumulative_loss": facts.totalLoss,
	}

	if facts.lossRun < d.cfg.MinLossQuarters {
		return facts, evidence, rejectf(pid, evidence,
			"only %d consecutive loss quarters before the turnaround, need %d",
			facts.lossRun, d.cfg.MinLossQuarters), false
	}

	avgLoss := runLoss / float64(facts.lossRun)
	if avgLoss > 0 {
		facts.improvement = math.Min(facts.latestProfit/avgLoss*100, 200)
	}
	facts.confidence = math.Min(100,
		30+10*float64(facts.lossRun)+facts.improvement*0.2)

	evidence["improvement_pct"] = facts.improvement
	return facts, evidence, model.Verdict{}, true
}

func (d *TurnaroundDetector) checkCrossover(snap *model.StockSnapshot, evidence map[string]float64) (model.Verdict, bool) {
	pid := model.PatternTurnaround

	ma5, rising := indicator.MA5Slope(snap.Candles)
	if ma5 <= 0 {
		return reject(pid, "no price series for moving-average confirmation", evidence), false
	}
	crossover := (snap.Price - ma5) / ma5
	evidence["ma5"] = ma5
	evidence["ma5_crossover"] = crossover

	if snap.Price <= ma5 {
		return rejectf(pid, evidence, "price %.1f below MA5 %.1f", snap.Price, ma5), false
	}
	if !rising {
		return reject(pid, "MA5 not trending upward", evidence), false
	}
	if crossover < d.cfg.CrossoverThreshold {
		return rejectf(pid, evidence,
			"MA5 crossover %.2f%% below %.1f%% threshold",
			crossover*100, d.cfg.CrossoverThreshold*100), false
	}
	return model.Verdict{}, true
}

func (d *TurnaroundDetector) checkExclusions(ctx context.Context, snap *model.StockSnapshot, turn turnaroundFacts, evidence map[string]float64) (model.Verdict, bool) {
	pid := model.PatternTurnaround

	if turn.totalLoss > d.cfg.TaxLossMagnitude && turn.lossQuarters > d.cfg.TaxLossQuarters {
		return rejectf(pid, evidence,
			"carried-forward tax losses likely: %.0f cumulative loss over %d quarters",
			turn.totalLoss, turn.lossQuarters), false
	}
	if math.Abs(snap.ChangeRate) > d.cfg.VolatilityBound {
		return rejectf(pid, evidence,
			"too volatile for turnaround thesis: |%.1f%%| > %.0f%%",
			snap.ChangeRate, d.cfg.VolatilityBound), false
	}
	if snap.Volume < d.cfg.LiquidityFloor {
		return rejectf(pid, evidence,
			"volume %d below liquidity floor %d", snap.Volume, d.cfg.LiquidityFloor), false
	}

	cutoff := time.Now().Add(-d.cfg.DedupWindow)
	prior, err := d.store.Query(ctx, snap.Symbol, cutoff, model.PatternTurnaround)
	if err != nil {
		log.Printf("[DETECTOR] turnaround: history query failed for %s: %v", snap.Symbol, err)
		return rejectf(pid, evidence, "evaluation error: history unavailable: %v", err), false
	}
	if len(prior) > 0 {
		return rejectf(pid, evidence,
			"already detected within dedup window on %s",
			prior[0].Timestamp.Format("2006-01-02")), false
	}
	return model.Verdict{}, true
}

func (d *TurnaroundDetector) synthesize(snap *model.StockSnapshot, turn turnaroundFacts, ind *model.IndicatorSet, evidence map[string]float64) model.Verdict {
	entry := snap.Price
	target := entry * (1 + d.cfg.ProfitTargetRate/100)
	stop := entry * (1 - d.cfg.StopLossRate/100)

	// Strength scales linearly 50-90 over the moderate change-rate band
	span := d.cfg.MaxChangeRate - d.cfg.MinChangeRate
	strength := 50.0
	if span > 0 {
		strength += (snap.ChangeRate - d.cfg.MinChangeRate) / span * 40
	}
	strength = math.Max(50, math.Min(90, strength))

	risk := AssessTurnaroundRisk(snap, ind, turn.lossRun, d.cfg)

	return model.Verdict{
		Detected: true,
		Pattern:  model.PatternTurnaround,
		Reason: fmt.Sprintf("turnaround confirmed: %d loss quarters then profit, MA5 crossover %.1f%%",
			turn.lossRun, evidence["ma5_crossover"]*100),
		Confidence:   turn.confidence,
		Evidence:     evidence,
		EntryPrice:   entry,
		ProfitTarget: target,
		StopLoss:     stop,
		MaxHoldDays:  d.cfg.MaxHoldDays,
		Strength:     strength,
		Risk:         risk,
	}
}

// LegacyTurnaroundDetector is the looser first-generation check: a
// turnaround shape plus price above MA5, nothing else.
type LegacyTurnaroundDetector struct {
	cfg config.TurnaroundConfig
}

// NewLegacyTurnaroundDetector creates the legacy variant
func NewLegacyTurnaroundDetector(cfg config.TurnaroundConfig) *LegacyTurnaroundDetector {
	return &LegacyTurnaroundDetector{cfg: cfg}
}

// ID returns the pattern id
func (d *LegacyTurnaroundDetector) ID() model.PatternID {
	return model.PatternTurnaroundLegacy
}

// Detect applies the legacy thresholds
func (d *LegacyTurnaroundDetector) Detect(_ context.Context, snap *model.StockSnapshot) model.Verdict {
	return safeDetect(model.PatternTurnaroundLegacy, snap.Symbol, func() model.Verdict {
		pid := model.PatternTurnaroundLegacy

		qs := snap.Quarters
		if len(qs) < 2 {
			return reject(pid, "insufficient earnings history", nil)
		}
		if qs[len(qs)-1].NetProfit <= 0 {
			return reject(pid, "latest quarter not profitable", nil)
		}
		if qs[len(qs)-2].NetProfit >= 0 {
			return reject(pid, "no loss quarter before the latest", nil)
		}

		ma5 := indicator.SMA(snap.Candles, 5)
		if ma5 > 0 && snap.Price <= ma5 {
			return rejectf(pid, map[string]float64{"ma5": ma5},
				"price %.1f below MA5 %.1f", snap.Price, ma5)
		}

		return model.Verdict{
			Detected:   true,
			Pattern:    pid,
			Reason:     "legacy turnaround candidate: loss-to-profit quarter",
			Confidence: 50,
			Strength:   50,
			Evidence:   map[string]float64{"ma5": ma5},
		}
	})
}
