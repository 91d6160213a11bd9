package services

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-research/models"
)

// DemoTradingDays is the number of business days the demo source generates
const DemoTradingDays = 252

// demoProfile shapes the random walk for a symbol
type demoProfile struct {
	basePrice  float64
	volatility float64
	trend      float64
}

var demoProfiles = map[string]demoProfile{
	"RELIANCE.NS": {basePrice: 2850, volatility: 0.015, trend: 0.0002},
	"TCS.NS":      {basePrice: 3650, volatility: 0.012, trend: 0.0003},
	"INFY.NS":     {basePrice: 1450, volatility: 0.013, trend: 0.0001},
	"HDFCBANK.NS": {basePrice: 1650, volatility: 0.014, trend: 0.0002},
}

var defaultDemoProfile = demoProfile{basePrice: 1000, volatility: 0.014, trend: 0.0002}

// DemoSource generates a deterministic random walk per symbol for offline use.
// The same symbol and range always produce the same bars.
type DemoSource struct{}

// NewDemoSource creates a DemoSource
func NewDemoSource() *DemoSource {
	return &DemoSource{}
}

func (s *DemoSource) Name() string { return "demo" }

// GetDailyHistory returns up to DemoTradingDays business-day bars starting at start
func (s *DemoSource) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, models.StockMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.StockMetadata{}, err
	}

	profile, ok := demoProfiles[symbol]
	if !ok {
		profile = defaultDemoProfile
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x5eed))

	normal := func(mean, stddev float64) float64 {
		return mean + stddev*rng.NormFloat64()
	}

	var bars []models.PriceBar
	price := profile.basePrice
	endDay := models.NewDate(end)
	for day := models.NewDate(start); !day.After(endDay.Time) && len(bars) < DemoTradingDays; day = models.NewDate(day.AddDate(0, 0, 1)) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		price *= 1 + normal(profile.trend, profile.volatility)
		open := price * (1 + normal(0, profile.volatility/2))
		high := math.Max(open, price) * (1 + math.Abs(normal(0, profile.volatility/3)))
		low := math.Min(open, price) * (1 - math.Abs(normal(0, profile.volatility/3)))
		volume := math.Exp(normal(15, 0.5))

		bars = append(bars, models.PriceBar{
			Date:   day,
			Open:   decimal.NewFromFloat(open).Round(2),
			High:   decimal.NewFromFloat(high).Round(2),
			Low:    decimal.NewFromFloat(low).Round(2),
			Close:  decimal.NewFromFloat(price).Round(2),
			Volume: int64(volume),
		})
	}

	meta := models.StockMetadata{Currency: "USD"}
	if strings.HasSuffix(symbol, ".NS") || strings.HasSuffix(symbol, ".BO") {
		meta.Currency = "INR"
	}
	return bars, meta, nil
}
