// Package analysis turns raw market data into the analyzed series and
// narrative reports served to the dashboard.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"stock-research/indicators"
	"stock-research/models"
	"stock-research/observability"
	"stock-research/services"
)

// DefaultRefreshTimeout bounds a single upstream refresh
const DefaultRefreshTimeout = 30 * time.Second

// SeriesStore is the persistence the provider needs
type SeriesStore interface {
	Load(symbol string) (*models.CacheEntry, bool)
	Freshness(symbol string) (time.Duration, bool)
	Save(symbol string, entry *models.CacheEntry) error
}

// SeriesSource returns the analyzed series for a symbol
type SeriesSource interface {
	GetSeries(ctx context.Context, symbol string) (*models.SeriesResult, error)
}

// SeriesProvider serves analyzed series from the cache and refreshes stale
// symbols from the market data fetcher. At most one refresh per symbol is in
// flight at a time; concurrent callers share its result.
type SeriesProvider struct {
	symbols        *models.SymbolSet
	store          SeriesStore
	fetcher        services.MarketDataFetcher
	ttl            time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	group          singleflight.Group
}

// NewSeriesProvider creates a SeriesProvider over the given allow-list
func NewSeriesProvider(symbols *models.SymbolSet, store SeriesStore, fetcher services.MarketDataFetcher, ttl time.Duration) *SeriesProvider {
	return &SeriesProvider{
		symbols:        symbols,
		store:          store,
		fetcher:        fetcher,
		ttl:            ttl,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
	}
}

// WithRefreshTimeout overrides the upstream timeout of a refresh
func (p *SeriesProvider) WithRefreshTimeout(d time.Duration) *SeriesProvider {
	if d > 0 {
		p.refreshTimeout = d
	}
	return p
}

// WithClock replaces the clock used to stamp refreshed entries
func (p *SeriesProvider) WithClock(now func() time.Time) *SeriesProvider {
	p.now = now
	return p
}

// Symbols returns the supported allow-list
func (p *SeriesProvider) Symbols() *models.SymbolSet {
	return p.symbols
}

type refreshOutcome struct {
	entry  *models.CacheEntry
	status models.CacheStatus
}

// GetSeries returns the analyzed series for symbol, tagged cached or refreshed.
// A failed refresh falls back to any readable cached copy regardless of age.
func (p *SeriesProvider) GetSeries(ctx context.Context, symbol string) (*models.SeriesResult, error) {
	metrics := observability.GetMetrics()

	info, ok := p.symbols.Lookup(symbol)
	if !ok {
		metrics.RecordSeriesRequest("unsupported", "unknown_symbol")
		return nil, fmt.Errorf("%w: %q is not a supported symbol", models.ErrUnknownSymbol, symbol)
	}

	if entry, ok := p.loadFresh(symbol); ok {
		metrics.RecordSeriesRequest(symbol, string(models.CacheStatusCached))
		return newResult(info, entry, models.CacheStatusCached), nil
	}

	ch := p.group.DoChan(symbol, func() (any, error) {
		return p.refresh(ctx, symbol)
	})

	select {
	case <-ctx.Done():
		metrics.RecordSeriesRequest(symbol, "cancelled")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordSeriesRequest(symbol, "error")
			return nil, res.Err
		}
		outcome := res.Val.(*refreshOutcome)
		metrics.RecordSeriesRequest(symbol, string(outcome.status))
		return newResult(info, outcome.entry, outcome.status), nil
	}
}

func (p *SeriesProvider) loadFresh(symbol string) (*models.CacheEntry, bool) {
	age, ok := p.store.Freshness(symbol)
	if !ok || age >= p.ttl {
		return nil, false
	}
	return p.store.Load(symbol)
}

// refresh runs inside the single-flight group. It is detached from the
// triggering caller's cancellation so other waiters still get a result.
func (p *SeriesProvider) refresh(ctx context.Context, symbol string) (*refreshOutcome, error) {
	if entry, ok := p.loadFresh(symbol); ok {
		return &refreshOutcome{entry: entry, status: models.CacheStatusCached}, nil
	}

	log := observability.WithSymbol(symbol)
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.refreshTimeout)
	defer cancel()

	data, err := p.fetcher.Fetch(fetchCtx, symbol)
	if err != nil {
		if stale, ok := p.store.Load(symbol); ok {
			timer.ObserveRefresh(symbol, "fallback")
			metrics.RecordCacheFallback(symbol)
			log.Warn("refresh failed, serving stale cache",
				"error", err,
				"cached_at", stale.FetchedAt)
			return &refreshOutcome{entry: stale, status: models.CacheStatusCached}, nil
		}

		timer.ObserveRefresh(symbol, "error")
		log.Error("refresh failed with no cached copy", "error", err)
		if errors.Is(err, models.ErrUnknownSymbol) || errors.Is(err, models.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: refreshing %s: %w", models.ErrUpstreamUnavailable, symbol, err)
	}

	entry := &models.CacheEntry{
		Symbol:    symbol,
		FetchedAt: p.now().UTC(),
		Metadata:  data.Metadata,
		Series:    indicators.Analyze(data.Bars),
	}

	if err := p.store.Save(symbol, entry); err != nil {
		log.Error("failed to save refreshed series", "error", err)
	}

	timer.ObserveRefresh(symbol, "success")
	log.Info("series refreshed", "bars", len(entry.Series))
	return &refreshOutcome{entry: entry, status: models.CacheStatusRefreshed}, nil
}

func newResult(info models.StockInfo, entry *models.CacheEntry, status models.CacheStatus) *models.SeriesResult {
	return &models.SeriesResult{
		Symbol:    info.Symbol,
		Name:      info.Name,
		Series:    entry.Series,
		Metadata:  entry.Metadata,
		Status:    status,
		FetchedAt: entry.FetchedAt,
	}
}
