// Package scanner fans the evaluation pipeline out across a symbol
// universe with a bounded worker pool and upstream-friendly pacing.
package scanner

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"screener/internal/integrator"
	"screener/internal/provider"
	"screener/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Pacing tiers: the inter-request delay shrinks as the scan proves the
// upstream is keeping up.
const (
	delayEarly = 2 * time.Second
	delayMid   = 1 * time.Second
	delayLate  = 500 * time.Millisecond

	earlyPhaseEnd = 0.10
	midPhaseEnd   = 0.50
)

// Scanner evaluates a symbol universe in parallel
type Scanner struct {
	provider     provider.Provider
	integrator   *integrator.Integrator
	workers      int
	timeout      time.Duration
	paced        bool
	progressFunc ProgressCallback
}

// NewScanner creates a scanner. workers below 1 falls back to 5.
func NewScanner(p provider.Provider, in *integrator.Integrator, workers int, timeout time.Duration) *Scanner {
	if workers < 1 {
		workers = 5
	}
	return &Scanner{
		provider:   p,
		integrator: in,
		workers:    workers,
		timeout:    timeout,
		paced:      true,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// SetPaced toggles inter-request pacing. Local sources like snapshot
// files need none.
func (s *Scanner) SetPaced(paced bool) {
	s.paced = paced
}

// interRequestDelay returns the pacing delay for the current progress
// fraction (completed / total).
func interRequestDelay(progress float64) time.Duration {
	switch {
	case progress < earlyPhaseEnd:
		return delayEarly
	case progress < midPhaseEnd:
		return delayMid
	default:
		return delayLate
	}
}

// Scan evaluates all symbols. Per-symbol failures are logged and
// counted, never propagated; a single bad symbol cannot abort the
// batch. Signals come back sorted by strength, strongest first.
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*model.ScanResult, error) {
	startTime := time.Now()

	if len(symbols) == 0 {
		return &model.ScanResult{Signals: []model.TradingSignal{}, ScanTime: time.Since(startTime)}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	jobChan := make(chan string, len(symbols))
	resultChan := make(chan model.TradingSignal, len(symbols))

	for _, sym := range symbols {
		jobChan <- sym
	}
	close(jobChan)

	var scanned, failures int64
	total := len(symbols)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				sig, ok := s.evaluateSymbol(ctx, sym)
				if ok {
					resultChan <- sig
				} else {
					atomic.AddInt64(&failures, 1)
				}

				count := atomic.AddInt64(&scanned, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), total)
				}

				// Pace the next request based on overall progress.
				// Nothing left queued means nothing to pace for.
				if s.paced && len(jobChan) > 0 {
					delay := interRequestDelay(float64(count) / float64(total))
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var signals []model.TradingSignal
	for sig := range resultChan {
		signals = append(signals, sig)
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Strength > signals[j].Strength
	})

	return &model.ScanResult{
		TotalScanned: total,
		SignalCount:  len(signals),
		ErrorCount:   int(failures),
		Signals:      signals,
		ScanTime:     time.Since(startTime),
	}, nil
}

// evaluateSymbol fetches one snapshot and runs the integrator. A fetch
// failure or an ERROR signal counts as a failed symbol.
func (s *Scanner) evaluateSymbol(ctx context.Context, symbol string) (model.TradingSignal, bool) {
	snap, err := s.provider.GetSnapshot(ctx, symbol)
	if err != nil {
		log.Printf("[SCANNER] %s: fetch failed: %v", symbol, err)
		return model.TradingSignal{}, false
	}
	if snap == nil {
		log.Printf("[SCANNER] %s: provider returned no data", symbol)
		return model.TradingSignal{}, false
	}

	sig := s.integrator.Evaluate(ctx, snap)
	if sig.Action == model.ActionError {
		log.Printf("[SCANNER] %s: evaluation error: %v", symbol, sig.ExecutionNotes)
		return model.TradingSignal{}, false
	}
	return sig, true
}
