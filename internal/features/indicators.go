// Package features computes model inputs from persisted bars: technical
// indicator rows and fixed-length normalized sequences.
package features

import (
	"math"

	"github.com/marketml/stockpipe/internal/store"
)

// IndicatorRow is one fully-warmed feature row. Every value at date t is
// computed from bars at or before t.
type IndicatorRow struct {
	Ticker string
	Date   string

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	RSI        float64
	MACDLine   float64
	MACDSignal float64
	MACDHist   float64

	BBMiddle   float64
	BBUpper    float64
	BBLower    float64
	BBWidth    float64
	BBPosition float64

	VolumeMA    float64
	VolumeRatio float64
}

// FeatureNames lists the model feature columns in the order Features
// emits them.
func FeatureNames() []string {
	return []string{
		"open", "high", "low", "close", "volume",
		"rsi_14", "macd_line", "macd_signal", "macd_hist",
		"bb_middle", "bb_upper", "bb_lower", "bb_width", "bb_position",
		"volume_ma_20", "volume_ratio",
	}
}

// Features returns the row's values aligned with FeatureNames.
func (r IndicatorRow) Features() []float64 {
	return []float64{
		r.Open, r.High, r.Low, r.Close, r.Volume,
		r.RSI, r.MACDLine, r.MACDSignal, r.MACDHist,
		r.BBMiddle, r.BBUpper, r.BBLower, r.BBWidth, r.BBPosition,
		r.VolumeMA, r.VolumeRatio,
	}
}

// IndicatorEngine computes the standard indicator set with fixed periods.
type IndicatorEngine struct {
	rsiPeriod  int
	macdFast   int
	macdSlow   int
	macdSignal int
	bbPeriod   int
	bbStdDev   float64
	volPeriod  int
}

func NewIndicatorEngine() *IndicatorEngine {
	return &IndicatorEngine{
		rsiPeriod:  14,
		macdFast:   12,
		macdSlow:   26,
		macdSignal: 9,
		bbPeriod:   20,
		bbStdDev:   2.0,
		volPeriod:  20,
	}
}

// WarmupBars is the number of leading bars consumed before the first row
// is emitted. The MACD signal line has the longest lookback.
func (e *IndicatorEngine) WarmupBars() int {
	return e.macdSlow + e.macdSignal - 1
}

// Compute derives indicator rows from chronologically ordered bars. Rows
// inside the warmup window are omitted rather than emitted with partial
// values.
func (e *IndicatorEngine) Compute(ticker string, bars []store.PriceBar) []IndicatorRow {
	warmup := e.WarmupBars()
	if len(bars) < warmup {
		return nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	rsi := wilderRSI(closes, e.rsiPeriod)
	macdLine, macdSignal := macd(closes, e.macdFast, e.macdSlow, e.macdSignal)
	bbMid, bbUpper, bbLower := bollinger(closes, e.bbPeriod, e.bbStdDev)
	volMA := sma(volumes, e.volPeriod)

	rows := make([]IndicatorRow, 0, len(bars)-warmup+1)
	for i := warmup - 1; i < len(bars); i++ {
		b := bars[i]
		row := IndicatorRow{
			Ticker: ticker,
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: volumes[i],

			RSI:        rsi[i],
			MACDLine:   macdLine[i],
			MACDSignal: macdSignal[i],
			MACDHist:   macdLine[i] - macdSignal[i],

			BBMiddle: bbMid[i],
			BBUpper:  bbUpper[i],
			BBLower:  bbLower[i],

			VolumeMA: volMA[i],
		}
		if row.BBMiddle != 0 {
			row.BBWidth = (row.BBUpper - row.BBLower) / row.BBMiddle
		}
		if span := row.BBUpper - row.BBLower; span > 0 {
			row.BBPosition = (b.Close - row.BBLower) / span
		} else {
			// Zero band width means every recent close was identical.
			row.BBPosition = 0.5
		}
		if row.VolumeMA > 0 {
			row.VolumeRatio = volumes[i] / row.VolumeMA
		}
		rows = append(rows, row)
	}
	return rows
}

// wilderRSI computes the Wilder-smoothed relative strength index. Values
// before the first full period are zero.
func wilderRSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema seeds with the first value and applies the standard smoothing factor
// 2/(span+1).
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func macd(closes []float64, fast, slow, signal int) (line, sig []float64) {
	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = ema(line, signal)
	return line, sig
}

// bollinger uses the population standard deviation over the window.
func bollinger(closes []float64, period int, stdDevs float64) (mid, upper, lower []float64) {
	mid = sma(closes, period)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))

	for i := period - 1; i < len(closes); i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mid[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + stdDevs*sd
		lower[i] = mid[i] - stdDevs*sd
	}
	return mid, upper, lower
}

func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
