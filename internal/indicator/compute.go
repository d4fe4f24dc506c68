package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"fx-signal-engine/internal/database"
)

// Trend, momentum, volatility and volume state tags.
const (
	TrendBullish  = "BULLISH"
	TrendBearish  = "BEARISH"
	TrendSideways = "SIDEWAYS"

	MomentumOverbought = "OVERBOUGHT"
	MomentumOversold   = "OVERSOLD"
	MomentumNeutral    = "NEUTRAL"

	VolatilityHigh   = "HIGH"
	VolatilityNormal = "NORMAL"
	VolatilityLow    = "LOW"
)

// FibLookback is the swing window for Fibonacci levels.
const FibLookback = 100

// Series holds one timeframe's bars as parallel slices, oldest first.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// FromBars converts stored bars into a computation series.
func FromBars(bars []*database.Bar) Series {
	s := Series{
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.Open[i] = b.Open
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Close[i] = b.Close
		s.Volume[i] = float64(b.Volume)
	}
	return s
}

// Compute derives the full indicator set for one timeframe. Keys are
// unprefixed; Snapshot.Merge adds the timeframe prefix. Indicators whose
// lookback exceeds the series length are simply absent.
func Compute(s Series) map[string]interface{} {
	out := make(map[string]interface{}, 64)
	n := len(s.Close)
	if n == 0 {
		return out
	}

	out["open"] = s.Open[n-1]
	out["high"] = s.High[n-1]
	out["low"] = s.Low[n-1]
	out["close"] = s.Close[n-1]
	out["volume"] = s.Volume[n-1]

	// Moving averages
	for _, period := range []int{21, 50, 55, 200} {
		if n >= period {
			out[fmt.Sprintf("EMA_%d", period)] = last(talib.Ema(s.Close, period))
		}
	}
	for _, period := range []int{20, 50, 200} {
		if n >= period {
			out[fmt.Sprintf("SMA_%d", period)] = last(talib.Sma(s.Close, period))
		}
	}

	// Trend
	if n >= 26+9 {
		macd, signal, hist := talib.Macd(s.Close, 12, 26, 9)
		out["MACD"] = last(macd)
		out["MACD_Signal"] = last(signal)
		out["MACD_Histogram"] = last(hist)
	}
	var adxNow float64
	if n >= 2*14+1 {
		adx := talib.Adx(s.High, s.Low, s.Close, 14)
		adxNow = last(adx)
		out["ADX"] = adxNow
		// ADXR is the mean of the current ADX and the value one period back.
		if len(adx) > 14 {
			out["ADXR"] = (adxNow + adx[len(adx)-1-14]) / 2
		}
	}
	out["Trend_Direction"] = trendDirection(out, adxNow)

	// Momentum
	for _, period := range []int{7, 14, 21} {
		if n >= period+1 {
			out[fmt.Sprintf("RSI_%d", period)] = last(talib.Rsi(s.Close, period))
		}
	}
	if n >= 14+3+3 {
		k, d := talib.Stoch(s.High, s.Low, s.Close, 14, 3, 0, 3, 0)
		out["Stochastic_K"] = last(k)
		out["Stochastic_D"] = last(d)
	}
	if n >= 14 {
		out["Williams_R"] = last(talib.WillR(s.High, s.Low, s.Close, 14))
	}
	out["Momentum_State"] = momentumState(out)

	// Volatility
	for _, period := range []int{14, 21} {
		if n >= period+1 {
			out[fmt.Sprintf("ATR_%d", period)] = last(talib.Atr(s.High, s.Low, s.Close, period))
		}
	}
	if n >= 20 {
		upper, middle, lower := talib.BBands(s.Close, 20, 2.0, 2.0, 0)
		u, m, l := last(upper), last(middle), last(lower)
		out["BB_Upper"] = u
		out["BB_Middle"] = m
		out["BB_Lower"] = l
		if u > l {
			out["BB_Position"] = (s.Close[n-1] - l) / (u - l)
		}
		if m > 0 {
			out["bollinger_width"] = (u - l) / m
		}
		out["Volatility_State"] = volatilityState(upper, middle, lower)
	}

	// Volume
	if n >= 20 {
		volSMA := last(talib.Sma(s.Volume, 20))
		out["Volume_SMA_20"] = volSMA
		if volSMA > 0 {
			out["Volume_Ratio"] = s.Volume[n-1] / volSMA
		}
	}
	if n >= 50 {
		out["Volume_SMA_50"] = last(talib.Sma(s.Volume, 50))
	}
	if n >= 2 {
		out["OBV"] = last(talib.Obv(s.Close, s.Volume))
	}
	out["Volume_State"] = volumeState(out)

	// Fibonacci retracements and extensions over the swing window
	fibLevels(s, out)

	// Candle anatomy for the last two bars
	candleShape(s, n-1, "", out)
	if n >= 2 {
		candleShape(s, n-2, "prev_", out)
	}

	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func trendDirection(out map[string]interface{}, adx float64) string {
	ema21, ok1 := out["EMA_21"].(float64)
	ema55, ok2 := out["EMA_55"].(float64)
	if !ok1 || !ok2 {
		return TrendSideways
	}
	// A weak ADX overrides the EMA alignment.
	if adx > 0 && adx < 20 {
		return TrendSideways
	}
	if ema21 > ema55 {
		return TrendBullish
	}
	if ema21 < ema55 {
		return TrendBearish
	}
	return TrendSideways
}

func momentumState(out map[string]interface{}) string {
	rsi, ok := out["RSI_14"].(float64)
	if !ok {
		return MomentumNeutral
	}
	switch {
	case rsi >= 70:
		return MomentumOverbought
	case rsi <= 30:
		return MomentumOversold
	default:
		return MomentumNeutral
	}
}

// volatilityState compares the current band width against its own average.
func volatilityState(upper, middle, lower []float64) string {
	n := len(middle)
	if n == 0 || middle[n-1] == 0 {
		return VolatilityNormal
	}
	width := func(i int) float64 {
		if middle[i] == 0 {
			return 0
		}
		return (upper[i] - lower[i]) / middle[i]
	}

	lookback := 50
	if n < lookback {
		lookback = n
	}
	var sum float64
	var count int
	for i := n - lookback; i < n; i++ {
		if w := width(i); w > 0 {
			sum += w
			count++
		}
	}
	if count == 0 {
		return VolatilityNormal
	}
	avg := sum / float64(count)
	current := width(n - 1)
	switch {
	case current > avg*1.5:
		return VolatilityHigh
	case current < avg*0.5:
		return VolatilityLow
	default:
		return VolatilityNormal
	}
}

func volumeState(out map[string]interface{}) string {
	ratio, ok := out["Volume_Ratio"].(float64)
	if !ok {
		return VolatilityNormal
	}
	switch {
	case ratio > 1.5:
		return VolatilityHigh
	case ratio < 0.5:
		return VolatilityLow
	default:
		return VolatilityNormal
	}
}

var (
	fibRetracements = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	fibExtensions   = []float64{1.272, 1.414, 1.618, 2.0}
)

// fibLevels derives retracement levels inside the swing range and extension
// levels projected beyond it.
func fibLevels(s Series, out map[string]interface{}) {
	n := len(s.Close)
	if n < 2 {
		return
	}
	start := n - FibLookback
	if start < 0 {
		start = 0
	}

	high := s.High[start]
	low := s.Low[start]
	for i := start; i < n; i++ {
		if s.High[i] > high {
			high = s.High[i]
		}
		if s.Low[i] < low {
			low = s.Low[i]
		}
	}
	diff := high - low
	if diff <= 0 {
		return
	}

	for _, r := range fibRetracements {
		out[fibKey(r)] = high - diff*r
	}
	for _, r := range fibExtensions {
		out[fibKey(r)] = low + diff*r
	}
}

func fibKey(r float64) string {
	if r == 2.0 {
		return "Fib_2.0"
	}
	return fmt.Sprintf("Fib_%g", r)
}

func candleShape(s Series, i int, prefix string, out map[string]interface{}) {
	o, h, l, c := s.Open[i], s.High[i], s.Low[i], s.Close[i]
	body := math.Abs(c - o)
	upper := h - math.Max(o, c)
	lower := math.Min(o, c) - l

	out[prefix+"candle_body"] = body
	out[prefix+"candle_upper_shadow"] = upper
	out[prefix+"candle_lower_shadow"] = lower
	out[prefix+"candle_bullish"] = boolValue(c > o)
	out[prefix+"candle_bearish"] = boolValue(c < o)
}

// States and flags are stored as floats so conditions can compare them
// numerically.
func boolValue(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
