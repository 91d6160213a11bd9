// Package indicators computes moving averages and RSI over daily price bars.
// Everything here is pure: no I/O, deterministic, and tolerant of short input.
package indicators

import (
	"github.com/shopspring/decimal"

	"stock-research/models"
)

// Window sizes used by Analyze
const (
	MAShortWindow  = 20
	MAMediumWindow = 50
	MALongWindow   = 200
	RSIPeriod      = 14
)

// RSI zone boundaries
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// Analyze appends MA20, MA50, MA200 and RSI(14) columns to bars.
// Columns are null until their window is filled; short input only produces more nulls.
func Analyze(bars []models.PriceBar) models.AnalyzedSeries {
	series := make(models.AnalyzedSeries, len(bars))
	closes := make([]decimal.Decimal, len(bars))
	for i, bar := range bars {
		series[i].PriceBar = bar
		closes[i] = bar.Close
	}

	ma20 := SMA(closes, MAShortWindow)
	ma50 := SMA(closes, MAMediumWindow)
	ma200 := SMA(closes, MALongWindow)
	rsi := RSI(closes, RSIPeriod)

	for i := range series {
		series[i].MA20 = ma20[i]
		series[i].MA50 = ma50[i]
		series[i].MA200 = ma200[i]
		series[i].RSI = rsi[i]
	}
	return series
}

// SMA returns the simple moving average of closes over window for every index.
// out[i] is null for i < window-1. The rolling sum is exact in decimal, so the
// result equals the arithmetic mean of the trailing window.
func SMA(closes []decimal.Decimal, window int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(closes))
	if window <= 0 {
		return out
	}

	divisor := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	for i, c := range closes {
		sum = sum.Add(c)
		if i >= window {
			sum = sum.Sub(closes[i-window])
		}
		if i >= window-1 {
			out[i] = decimal.NewNullDecimal(sum.Div(divisor))
		}
	}
	return out
}

// RSI returns the relative strength index for every index.
// gain/loss are taken from day-over-day close deltas and averaged with a simple
// rolling mean over the trailing period deltas. out[i] is null for i < period.
// A window with no losses yields exactly 100.
func RSI(closes []decimal.Decimal, period int) []*float64 {
	out := make([]*float64, len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i].Sub(closes[i-1]).InexactFloat64()
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(closes); i++ {
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		value := rsiFromAverages(gainSum/float64(period), lossSum/float64(period))
		out[i] = &value
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	// guard against float drift at the bounds
	if rsi < 0 {
		return 0
	}
	if rsi > 100 {
		return 100
	}
	return rsi
}
