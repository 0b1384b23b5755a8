// Package detector implements the stateful rule chains that decide
// whether a snapshot exhibits one of the screened trading patterns.
// Every gate rejection is an ordinary value with a reason, never an
// error; only genuinely unexpected failures surface as "evaluation
// error" verdicts.
package detector

import (
	"context"
	"fmt"
	"log"

	"screener/internal/indicator"
	"screener/pkg/model"
)

// Detector is one pattern rule chain. Detect never panics across this
// boundary and never returns an error: rejections and internal
// failures both resolve to a Verdict.
type Detector interface {
	// ID returns the pattern this detector screens for
	ID() model.PatternID

	// Detect evaluates one snapshot. The verdict always carries a
	// reason, whether detected or rejected.
	Detect(ctx context.Context, snap *model.StockSnapshot) model.Verdict
}

// reject builds a rejection verdict with supporting evidence
func reject(pattern model.PatternID, reason string, evidence map[string]float64) model.Verdict {
	return model.Verdict{
		Detected: false,
		Pattern:  pattern,
		Reason:   reason,
		Evidence: evidence,
	}
}

// rejectf is reject with a formatted reason
func rejectf(pattern model.PatternID, evidence map[string]float64, format string, args ...interface{}) model.Verdict {
	return reject(pattern, fmt.Sprintf(format, args...), evidence)
}

// safeDetect runs fn and converts a panic into a rejection verdict so
// one malformed snapshot can never abort a batch scan.
func safeDetect(pattern model.PatternID, symbol string, fn func() model.Verdict) (verdict model.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DETECTOR] %s: recovered evaluating %s: %v", pattern, symbol, r)
			verdict = reject(pattern, fmt.Sprintf("evaluation error: %v", r), nil)
		}
	}()
	return fn()
}

// indicators returns the snapshot's precomputed indicator set, or
// derives one from its candle series. Always usable, possibly neutral.
func indicators(snap *model.StockSnapshot) *model.IndicatorSet {
	if snap.Signals != nil {
		return snap.Signals
	}
	return indicator.Compute(snap.Candles)
}

// lowerShadow returns the candle-derived lower-shadow ratio when a
// series is present, falling back to the externally estimated field.
func lowerShadow(snap *model.StockSnapshot) float64 {
	if len(snap.Candles) > 0 {
		return indicator.LowerShadowRatio(snap.Candles[len(snap.Candles)-1])
	}
	return snap.LowerShadowRatio
}
