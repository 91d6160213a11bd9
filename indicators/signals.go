package indicators

import (
	"fmt"

	"stock-research/models"
)

// RSIZone classifies an RSI reading
type RSIZone string

const (
	RSIZoneOverbought RSIZone = "overbought"
	RSIZoneOversold   RSIZone = "oversold"
	RSIZoneNeutral    RSIZone = "neutral"
	RSIZoneUnknown    RSIZone = "unknown"
)

// ClassifyRSI maps an RSI value to its zone
func ClassifyRSI(rsi *float64) RSIZone {
	switch {
	case rsi == nil:
		return RSIZoneUnknown
	case *rsi > RSIOverbought:
		return RSIZoneOverbought
	case *rsi < RSIOversold:
		return RSIZoneOversold
	default:
		return RSIZoneNeutral
	}
}

// Signals holds human-readable trend signals for one bar
type Signals struct {
	MA  []string
	RSI string
}

// DescribeSignals builds the price-vs-average and RSI wording for bar
func DescribeSignals(bar models.AnalyzedBar) Signals {
	var s Signals

	averages := []struct {
		valid   bool
		above   bool
		label   string
		horizon string
	}{
		{bar.MA20.Valid, bar.Close.GreaterThan(bar.MA20.Decimal), "20-day MA", "short-term"},
		{bar.MA50.Valid, bar.Close.GreaterThan(bar.MA50.Decimal), "50-day MA", "medium-term"},
		{bar.MA200.Valid, bar.Close.GreaterThan(bar.MA200.Decimal), "200-day MA", "long-term"},
	}
	for _, a := range averages {
		if !a.valid {
			continue
		}
		if a.above {
			s.MA = append(s.MA, fmt.Sprintf("above %s (bullish %s)", a.label, a.horizon))
		} else {
			s.MA = append(s.MA, fmt.Sprintf("below %s (bearish %s)", a.label, a.horizon))
		}
	}

	switch ClassifyRSI(bar.RSI) {
	case RSIZoneOverbought:
		s.RSI = fmt.Sprintf("overbought (RSI %.1f > %.0f)", *bar.RSI, RSIOverbought)
	case RSIZoneOversold:
		s.RSI = fmt.Sprintf("oversold (RSI %.1f < %.0f)", *bar.RSI, RSIOversold)
	case RSIZoneNeutral:
		s.RSI = fmt.Sprintf("neutral (RSI = %.1f)", *bar.RSI)
	default:
		s.RSI = "not available (insufficient history)"
	}
	return s
}
