package indicator

import (
	"math"

	"screener/pkg/model"
)

// Minimum lookbacks per indicator. Series shorter than these produce
// neutral defaults instead of errors; callers never branch on failure here.
const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	MACDSlowPeriod  = 26
	MACDFastPeriod  = 12
	VolumePeriod    = 20
	trendRecent     = 3
	trendDeadband   = 2.0 // percent
)

// Neutral defaults for indicators that cannot be computed
const (
	NeutralRSI  = 50.0
	NeutralMACD = 0.0
)

// Compute derives an IndicatorSet from a candle series. A nil or short
// series yields neutral values; Compute never fails.
func Compute(candles []model.Candle) *model.IndicatorSet {
	set := &model.IndicatorSet{
		RSI:               NeutralRSI,
		MACD:              NeutralMACD,
		BollingerPosition: 0,
		VolumeRatio:       1.0,
		Trend:             model.TrendSideways,
	}

	if len(candles) == 0 {
		return set
	}

	if len(candles) >= RSIPeriod+1 {
		set.RSI = RSI(candles, RSIPeriod)
	}
	if len(candles) >= MACDSlowPeriod {
		set.MACD = MACD(candles)
	}
	if len(candles) >= BollingerPeriod {
		set.BollingerPosition = BollingerPosition(candles, BollingerPeriod, 2.0)
	}
	if len(candles) >= VolumePeriod+1 {
		set.VolumeRatio = VolumeRatio(candles, VolumePeriod)
	}
	set.Trend = Trend(candles)

	return set
}

// SMA calculates the simple moving average of the trailing period closes
func SMA(candles []model.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// RSI calculates the Wilder-style Relative Strength Index
func RSI(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return NeutralRSI
	}

	var gains, losses float64
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return math.Round((100-100/(1+rs))*100) / 100
}

// EMA calculates the exponential moving average of the closes
func EMA(candles []model.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	// Seed with SMA of the first window, then smooth forward
	var seed float64
	for i := 0; i < period; i++ {
		seed += candles[i].Close
	}
	ema := seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = candles[i].Close*k + ema*(1-k)
	}
	return ema
}

// MACD calculates EMA(12) - EMA(26)
func MACD(candles []model.Candle) float64 {
	if len(candles) < MACDSlowPeriod {
		return NeutralMACD
	}
	return EMA(candles, MACDFastPeriod) - EMA(candles, MACDSlowPeriod)
}

// BollingerPosition calculates where the latest close sits inside the
// Bollinger band: (price - SMA) / (upper - SMA), clamped to [-1, 1].
func BollingerPosition(candles []model.Candle, period int, stdDev float64) float64 {
	if len(candles) < period {
		return 0
	}

	ma := SMA(candles, period)

	var sumSquares float64
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - ma
		sumSquares += diff * diff
	}
	std := math.Sqrt(sumSquares / float64(period))
	if std == 0 {
		return 0
	}

	pos := (candles[len(candles)-1].Close - ma) / (std * stdDev)
	return math.Max(-1, math.Min(1, pos))
}

// VolumeRatio calculates the latest volume vs the average of the
// preceding period
func VolumeRatio(candles []model.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 1.0
	}

	var sum int64
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := float64(sum) / float64(period)
	if avg == 0 {
		return 1.0
	}

	return math.Round(float64(candles[len(candles)-1].Volume)/avg*100) / 100
}

// Trend compares the mean of the most recent 3 closes against the mean
// of the preceding window with a +-2% deadband.
func Trend(candles []model.Candle) model.TrendDirection {
	if len(candles) < trendRecent*2 {
		return model.TrendSideways
	}

	var recent float64
	for i := len(candles) - trendRecent; i < len(candles); i++ {
		recent += candles[i].Close
	}
	recent /= trendRecent

	prior := candles[:len(candles)-trendRecent]
	window := len(prior)
	if window > VolumePeriod {
		window = VolumePeriod
	}
	var base float64
	for i := len(prior) - window; i < len(prior); i++ {
		base += prior[i].Close
	}
	base /= float64(window)
	if base == 0 {
		return model.TrendSideways
	}

	shift := (recent - base) / base * 100
	switch {
	case shift > trendDeadband:
		return model.TrendUp
	case shift < -trendDeadband:
		return model.TrendDown
	default:
		return model.TrendSideways
	}
}

// MA5Slope reports the 5-period moving average and whether it is rising
// (current MA5 above the MA5 one bar earlier).
func MA5Slope(candles []model.Candle) (ma5 float64, rising bool) {
	if len(candles) < 6 {
		return SMA(candles, 5), false
	}
	ma5 = SMA(candles, 5)
	prev := SMA(candles[:len(candles)-1], 5)
	return ma5, ma5 > prev
}

// LowerShadowRatio estimates the lower-shadow share of the candle range:
// (min(open, close) - low) / (high - low).
func LowerShadowRatio(c model.Candle) float64 {
	span := c.High - c.Low
	if span <= 0 {
		return 0
	}
	body := math.Min(c.Open, c.Close)
	return (body - c.Low) / span
}
