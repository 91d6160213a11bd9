package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stock-research/models"
	"stock-research/observability"
)

// DefaultLookbackDays is the trailing calendar window fetched per symbol
const DefaultLookbackDays = 365

// MarketDataService combines a price history source with an optional fundamentals source
type MarketDataService struct {
	history      PriceHistorySource
	fundamentals FundamentalsSource
	lookbackDays int
	now          func() time.Time
}

// NewMarketDataService creates a MarketDataService. fundamentals may be nil.
func NewMarketDataService(history PriceHistorySource, fundamentals FundamentalsSource, lookbackDays int) *MarketDataService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &MarketDataService{
		history:      history,
		fundamentals: fundamentals,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// WithClock replaces the clock used to compute the fetch window
func (s *MarketDataService) WithClock(now func() time.Time) *MarketDataService {
	s.now = now
	return s
}

// Source returns the name of the price history source
func (s *MarketDataService) Source() string {
	return s.history.Name()
}

// Fetch returns the normalized daily bars for the trailing lookback window
// together with merged metadata. A fundamentals failure is logged and ignored.
func (s *MarketDataService) Fetch(ctx context.Context, symbol string) (*models.MarketData, error) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.lookbackDays)
	log := observability.WithSymbol(symbol)

	var (
		bars     []models.PriceBar
		meta     models.StockMetadata
		overview models.StockMetadata
		haveOver bool
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		bars, meta, err = s.history.GetDailyHistory(ctx, symbol, start, end)
		return err
	})
	if s.fundamentals != nil {
		g.Go(func() error {
			o, err := s.fundamentals.GetOverview(ctx, symbol)
			if err != nil {
				log.Warn("fundamentals unavailable, continuing with price metadata", "error", err)
				return nil
			}
			overview, haveOver = o, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bars = NormalizeBars(bars, start)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s returned no usable bars for %s", models.ErrUnknownSymbol, s.history.Name(), symbol)
	}

	if haveOver {
		meta.Merge(overview)
	}
	if meta.Name == "" {
		meta.Name = symbol
	}
	fillRangeFromBars(&meta, bars)
	meta.FetchedAt = s.now().UTC()

	log.Debug("market data fetched",
		"source", s.history.Name(),
		"bars", len(bars),
		"first", bars[0].Date.String(),
		"last", bars[len(bars)-1].Date.String())

	return &models.MarketData{
		Symbol:   symbol,
		Bars:     bars,
		Metadata: meta,
	}, nil
}

// NormalizeBars orders bars oldest first, keeps the last record for a repeated
// day, and drops bars that are all zero, negative, or dated before start.
// Exchange-local dates may run a day ahead of UTC, so no upper bound is applied.
func NormalizeBars(bars []models.PriceBar, start time.Time) []models.PriceBar {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]models.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	first := models.NewDate(start)

	out := make([]models.PriceBar, 0, len(sorted))
	for _, bar := range sorted {
		if isEmptyBar(bar) || bar.Validate() != nil {
			continue
		}
		if bar.Date.Before(first.Time) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Date.Equal(bar.Date.Time) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

func isEmptyBar(bar models.PriceBar) bool {
	return bar.Open.IsZero() && bar.High.IsZero() && bar.Low.IsZero() && bar.Close.IsZero()
}

// fillRangeFromBars computes the 52-week range from the bars when the sources left it unset
func fillRangeFromBars(meta *models.StockMetadata, bars []models.PriceBar) {
	if !meta.Week52High.IsZero() && !meta.Week52Low.IsZero() {
		return
	}

	high := bars[0].High
	low := bars[0].Low
	for _, bar := range bars[1:] {
		high = decimal.Max(high, bar.High)
		low = decimal.Min(low, bar.Low)
	}

	if meta.Week52High.IsZero() {
		meta.Week52High = high
	}
	if meta.Week52Low.IsZero() {
		meta.Week52Low = low
	}
}
