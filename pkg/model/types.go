package model

import "time"

// Candle represents a single candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// QuarterlyEarnings represents one quarter of reported earnings
type QuarterlyEarnings struct {
	Quarter    string    `json:"quarter"` // e.g. "2025Q2"
	ReportDate time.Time `json:"report_date"`
	NetProfit  float64   `json:"net_profit"` // negative = loss
}

// TrendDirection describes the short-term price trend
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// IndicatorSet is the derived technical bundle for one snapshot.
// Computed once per snapshot and never mutated afterward.
type IndicatorSet struct {
	RSI               float64        `json:"rsi"`
	MACD              float64        `json:"macd"`
	BollingerPosition float64        `json:"bollinger_position"` // -1..1
	VolumeRatio       float64        `json:"volume_ratio"`
	Trend             TrendDirection `json:"trend"`
}

// StockSnapshot is one scan tick for a symbol. Produced externally,
// consumed read-only by the detection core.
type StockSnapshot struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`
	ChangeRate float64 `json:"change_rate"` // percent
	Volume     int64   `json:"volume"`

	// Externally derived facts (reference data, not computed here)
	NewlyListed          bool    `json:"newly_listed"`
	WithinEarningsWindow bool    `json:"within_earnings_window"`
	LowerShadowRatio     float64 `json:"lower_shadow_ratio"` // 0..1, estimate when no series

	// Optional series; detectors fall back to scalar fields when absent
	Candles  []Candle            `json:"candles,omitempty"`
	Quarters []QuarterlyEarnings `json:"quarters,omitempty"`

	// Optional precomputed indicators; computed from Candles when nil
	Signals *IndicatorSet `json:"signals,omitempty"`
}

// PrevClose returns the previous close implied by price and change rate.
func (s *StockSnapshot) PrevClose() float64 {
	if s.ChangeRate <= -100 {
		return 0
	}
	return s.Price / (1 + s.ChangeRate/100)
}

// PatternID identifies a detection rule chain
type PatternID string

const (
	PatternStopHigh         PatternID = "stop_high"
	PatternStopHighLegacy   PatternID = "stop_high_legacy"
	PatternTurnaround       PatternID = "turnaround"
	PatternTurnaroundLegacy PatternID = "turnaround_legacy"

	// PatternStopHighReach marks a day the stop-high proximity gate
	// passed, whether or not the full chain confirmed. Used only as a
	// history marker for the consecutive stop-high exclusion.
	PatternStopHighReach PatternID = "stop_high_reach"
)

// RiskAssessment summarizes trade risk for one detection
type RiskAssessment struct {
	Level          string   `json:"level"` // LOW, MEDIUM, HIGH, VERY_HIGH
	Score          float64  `json:"score"` // 0-100
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// Verdict is the outcome of one detector run for one snapshot.
// Detected==true always carries evidence; false always carries a
// human-readable rejection Reason.
type Verdict struct {
	Detected   bool               `json:"detected"`
	Pattern    PatternID          `json:"pattern"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"` // 0-100
	Evidence   map[string]float64 `json:"evidence,omitempty"`

	// Populated only when Detected
	EntryPrice   float64         `json:"entry_price,omitempty"`
	ProfitTarget float64         `json:"profit_target,omitempty"`
	StopLoss     float64         `json:"stop_loss,omitempty"`
	MaxHoldDays  int             `json:"max_hold_days,omitempty"`
	Strength     float64         `json:"strength,omitempty"` // 0-100
	Risk         *RiskAssessment `json:"risk,omitempty"`
}

// Action is the final classification of an integrated signal
type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionWatch      Action = "WATCH"
	ActionHold       Action = "HOLD"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
	ActionError      Action = "ERROR"
)

// ComponentScores holds the weighted sub-scores behind a signal
type ComponentScores struct {
	Logic     float64 `json:"logic"`     // pattern detection, weight 40%
	Technical float64 `json:"technical"` // indicator analysis, weight 30%
	Timeframe float64 `json:"timeframe"` // multi-timeframe consistency, weight 20%
	Volume    float64 `json:"volume"`    // volume confirmation, weight 10%
}

// TradingSignal is the final, ranked output for one symbol.
// Built once per integration pass; immutable once returned.
type TradingSignal struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Action         Action          `json:"action"`
	Strength       float64         `json:"signal_strength"` // 0-100
	Confidence     float64         `json:"confidence"`      // 0-1
	EntryPrice     float64         `json:"entry_price"`
	ProfitTarget   float64         `json:"profit_target"`
	StopLoss       float64         `json:"stop_loss"`
	RiskReward     float64         `json:"risk_reward_ratio"`
	Shares         int             `json:"recommended_shares"`
	Exposure       float64         `json:"portfolio_exposure"` // fraction of portfolio
	Risk           *RiskAssessment `json:"risk_assessment,omitempty"`
	Components     ComponentScores `json:"component_scores"`
	Executable     bool            `json:"executable"`
	ExecutionNotes []string        `json:"execution_notes,omitempty"`
	Verdicts       []Verdict       `json:"verdicts,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// HistoryRecord is one past detection for a symbol. Append-only;
// owned by the history store.
type HistoryRecord struct {
	ID        string    `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Pattern   PatternID `json:"pattern" db:"pattern"`
	Timestamp time.Time `json:"timestamp" db:"detected_at"`
	Price     float64   `json:"price" db:"price"`
	Strength  float64   `json:"strength" db:"strength"`
	Reason    string    `json:"reason" db:"reason"`
}

// ScanResult represents the final scan output
type ScanResult struct {
	TotalScanned int             `json:"total_scanned"`
	SignalCount  int             `json:"signal_count"`
	ErrorCount   int             `json:"error_count"`
	Signals      []TradingSignal `json:"signals"`
	ScanTime     time.Duration   `json:"scan_time"`
}
