package detector

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"screener/internal/config"
	"screener/internal/history"
	"screener/pkg/model"
)

// StopHighDetector screens for the stop-high sticking breakout: a
// newly listed stock pinned at its daily price limit on heavy volume
// right after an earnings release. Gates run in order and short-circuit
// with a specific rejection reason.
type StopHighDetector struct {
	cfg   config.StopHighConfig
	store history.Store
}

// NewStopHighDetector creates the enhanced stop-high detector
func NewStopHighDetector(cfg config.StopHighConfig, store history.Store) *StopHighDetector {
	return &StopHighDetector{cfg: cfg, store: store}
}

// ID returns the pattern id
func (d *StopHighDetector) ID() model.PatternID {
	return model.PatternStopHigh
}

// Detect runs the full gate chain against one snapshot
func (d *StopHighDetector) Detect(ctx context.Context, snap *model.StockSnapshot) model.Verdict {
	return safeDetect(model.PatternStopHigh, snap.Symbol, func() model.Verdict {
		return d.detect(ctx, snap)
	})
}

func (d *StopHighDetector) detect(ctx context.Context, snap *model.StockSnapshot) model.Verdict {
	pid := model.PatternStopHigh

	// Gate 1: listing eligibility. Derived externally; the detector
	// only consumes the boolean.
	if !snap.NewlyListed {
		return reject(pid, "listing condition not met", nil)
	}

	// Gate 2: stop-high proximity
	if snap.ChangeRate < d.cfg.MinChangeRate {
		return rejectf(pid, map[string]float64{"change_rate": snap.ChangeRate},
			"change rate %.1f%% below %.1f%% minimum", snap.ChangeRate, d.cfg.MinChangeRate)
	}

	prevClose := snap.PrevClose()
	stopHigh := prevClose * (1 + d.cfg.StopHighLimitRate/100)
	reach := 0.0
	if stopHigh > 0 {
		reach = snap.Price / stopHigh
	}
	evidence := map[string]float64{
		"change_rate":     snap.ChangeRate,
		"prev_close":      prevClose,
		"stop_high_price": stopHigh,
		"reach_ratio":     reach,
		"volume":          float64(snap.Volume),
	}

	if reach < d.cfg.StopHighReachRatio {
		return rejectf(pid, evidence,
			"price %.1f reaches only %.1f%% of stop-high %.1f (need %.0f%%)",
			snap.Price, reach*100, stopHigh, d.cfg.StopHighReachRatio*100)
	}
	if snap.Volume < d.cfg.VolumeFloor {
		return rejectf(pid, evidence,
			"volume %d below %d floor", snap.Volume, d.cfg.VolumeFloor)
	}

	// The proximity gate passed: remember this stop-high day so the
	// consecutive exclusion can see it on later days.
	d.markReachDay(ctx, snap)

	// Gate 3: lower shadow
	shadow := lowerShadow(snap)
	evidence["lower_shadow"] = shadow
	if shadow > d.cfg.LowerShadowCeiling {
		return rejectf(pid, evidence,
			"lower shadow %.1f%% exceeds %.1f%% ceiling (intraday weakness)",
			shadow*100, d.cfg.LowerShadowCeiling*100)
	}

	// Gate 4: earnings timing. A limit-band move with no earnings
	// release behind it is rejected as an unexplained spike.
	if !snap.WithinEarningsWindow {
		if snap.ChangeRate >= d.cfg.SpikeRate {
			return rejectf(pid, evidence,
				"unexplained spike: %.1f%% outside earnings window", snap.ChangeRate)
		}
		return reject(pid, "not the day after an earnings release", evidence)
	}

	// Gate 5: consecutive stop-high days
	cutoff := time.Now().Add(-d.cfg.ConsecutiveWindow)
	reaches, err := d.store.Query(ctx, snap.Symbol, cutoff, model.PatternStopHighReach)
	if err != nil {
		log.Printf("[DETECTOR] stop_high: history query failed for %s: %v", snap.Symbol, err)
		return rejectf(pid, evidence, "evaluation error: history unavailable: %v", err)
	}
	// The marker for today was just written; prior days are the rest.
	priorReaches := 0
	today := dayOf(time.Now())
	for _, r := range reaches {
		if dayOf(r.Timestamp) != today {
			priorReaches++
		}
	}
	if priorReaches+1 >= d.cfg.ConsecutiveLimit {
		return rejectf(pid, evidence,
			"consecutive stop-high: %d stop-high days within trailing window", priorReaches+1)
	}

	// Gate 6: first occurrence. Once confirmed, never again.
	prior, err := d.store.Query(ctx, snap.Symbol, time.Time{}, model.PatternStopHigh)
	if err != nil {
		log.Printf("[DETECTOR] stop_high: history query failed for %s: %v", snap.Symbol, err)
		return rejectf(pid, evidence, "evaluation error: history unavailable: %v", err)
	}
	if len(prior) > 0 {
		return rejectf(pid, evidence,
			"already detected for this symbol on %s",
			prior[0].Timestamp.Format("2006-01-02"))
	}

	// Signal synthesis
	verdict := d.synthesize(snap, evidence)

	rec := model.HistoryRecord{
		ID:        uuid.NewString(),
		Symbol:    snap.Symbol,
		Pattern:   model.PatternStopHigh,
		Timestamp: time.Now(),
		Price:     snap.Price,
		Strength:  verdict.Strength,
		Reason:    verdict.Reason,
	}
	if err := d.store.Record(ctx, rec); err != nil {
		log.Printf("[DETECTOR] stop_high: recording detection for %s failed: %v", snap.Symbol, err)
	}

	return verdict
}

func (d *StopHighDetector) synthesize(snap *model.StockSnapshot, evidence map[string]float64) model.Verdict {
	entry := snap.Price * (1 + d.cfg.EntryTriggerRate/100)
	target := entry * (1 + d.cfg.ProfitTargetRate/100)
	stop := entry * (1 - d.cfg.StopLossRate/100)

	// Strength scales linearly 40-100 with how far the change rate
	// clears the entry trigger, saturating at the spike bound.
	span := d.cfg.SpikeRate - d.cfg.EntryTriggerRate
	strength := 40.0
	if span > 0 {
		strength += (snap.ChangeRate - d.cfg.EntryTriggerRate) / span * 60
	}
	strength = math.Max(40, math.Min(100, strength))

	ind := indicators(snap)
	risk := AssessStopHighRisk(snap, ind, d.cfg)

	evidence["entry_trigger_rate"] = d.cfg.EntryTriggerRate

	return model.Verdict{
		Detected:     true,
		Pattern:      model.PatternStopHigh,
		Reason:       "stop-high sticking breakout confirmed within earnings window",
		Confidence:   strength,
		Evidence:     evidence,
		EntryPrice:   entry,
		ProfitTarget: target,
		StopLoss:     stop,
		Strength:     strength,
		Risk:         risk,
	}
}

// markReachDay records today's stop-high reach once per calendar day
func (d *StopHighDetector) markReachDay(ctx context.Context, snap *model.StockSnapshot) {
	now := time.Now()
	existing, err := d.store.Query(ctx, snap.Symbol, dayOf(now), model.PatternStopHighReach)
	if err == nil && len(existing) > 0 {
		return
	}
	rec := model.HistoryRecord{
		ID:        uuid.NewString(),
		Symbol:    snap.Symbol,
		Pattern:   model.PatternStopHighReach,
		Timestamp: now,
		Price:     snap.Price,
		Reason:    "stop-high reached",
	}
	if err := d.store.Record(ctx, rec); err != nil {
		log.Printf("[DETECTOR] stop_high: recording reach marker for %s failed: %v", snap.Symbol, err)
	}
}

// dayOf truncates a time to its calendar day
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// LegacyStopHighDetector is the looser first-generation check kept for
// the integrator's logic score: trigger-rate move on meaningful volume,
// no history or timing gates.
type LegacyStopHighDetector struct {
	cfg config.StopHighConfig
}

// NewLegacyStopHighDetector creates the legacy variant
func NewLegacyStopHighDetector(cfg config.StopHighConfig) *LegacyStopHighDetector {
	return &LegacyStopHighDetector{cfg: cfg}
}

// ID returns the pattern id
func (d *LegacyStopHighDetector) ID() model.PatternID {
	return model.PatternStopHighLegacy
}

// Detect applies the legacy thresholds
func (d *LegacyStopHighDetector) Detect(_ context.Context, snap *model.StockSnapshot) model.Verdict {
	return safeDetect(model.PatternStopHighLegacy, snap.Symbol, func() model.Verdict {
		pid := model.PatternStopHighLegacy
		evidence := map[string]float64{
			"change_rate": snap.ChangeRate,
			"volume":      float64(snap.Volume),
		}

		if snap.ChangeRate < d.cfg.EntryTriggerRate {
			return rejectf(pid, evidence,
				"change rate %.1f%% below %.1f%% trigger", snap.ChangeRate, d.cfg.EntryTriggerRate)
		}
		if snap.Volume < d.cfg.VolumeFloor/2 {
			return rejectf(pid, evidence,
				"volume %d below legacy floor %d", snap.Volume, d.cfg.VolumeFloor/2)
		}

		strength := math.Min(100, 30+snap.ChangeRate*2)
		return model.Verdict{
			Detected:   true,
			Pattern:    pid,
			Reason:     "legacy stop-high candidate: strong move on volume",
			Confidence: strength,
			Strength:   strength,
			Evidence:   evidence,
		}
	})
}
