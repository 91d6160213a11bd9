package app

import (
	"context"
	"errors"
	"fmt"

	"stock-research/analysis"
	"stock-research/config"
	"stock-research/models"
	"stock-research/observability"
	"stock-research/repository"
	"stock-research/services"
)

// SeriesService defines the series operations needed by App
type SeriesService interface {
	GetSeries(ctx context.Context, symbol string) (*models.SeriesResult, error)
	Symbols() *models.SymbolSet
}

// ReportService defines the report operations needed by App
type ReportService interface {
	GenerateReport(ctx context.Context, symbol string) (*models.Report, error)
	Enabled() bool
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	ctx       context.Context
	cfg       *config.Config
	series    SeriesService
	reports   ReportService
	reportSem chan struct{}
}

// New creates a new App application struct
func New(cfg *config.Config, series SeriesService, reports ReportService) *App {
	limit := cfg.LLM.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	return &App{
		ctx:       context.Background(),
		cfg:       cfg,
		series:    series,
		reports:   reports,
		reportSem: make(chan struct{}, limit),
	}
}

// NewFromConfig wires the store, fetcher, provider and report generator
// described by cfg. A missing LLM credential disables reports rather than
// failing startup.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := repository.NewSeriesStore(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	history, err := services.NewPriceHistorySource(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := services.NewMarketDataService(history, services.NewFundamentalsSource(cfg), cfg.MarketData.LookbackDays)

	provider := analysis.NewSeriesProvider(cfg.Symbols, store, fetcher, cfg.Cache.TTL).
		WithRefreshTimeout(cfg.MarketData.Timeout)

	llm, err := services.NewLLMService(ctx, cfg)
	if err != nil {
		if !errors.Is(err, models.ErrConfigurationMissing) {
			return nil, err
		}
		observability.Warn("reports disabled", "reason", err, "credential", cfg.LLMCredentialName())
		llm = nil
	}

	observability.Info("application wired",
		"market_data", history.Name(),
		"cache_dir", store.Dir(),
		"symbols", cfg.Symbols.Len(),
		"reports_enabled", llm != nil)

	return New(cfg, provider, analysis.NewReportGenerator(provider, llm)), nil
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	observability.Info("application shutting down")
}

// ListSupportedSymbols returns the allow-list in configuration order
func (a *App) ListSupportedSymbols() []models.StockInfo {
	if a.series == nil {
		return nil
	}
	return a.series.Symbols().List()
}

// GetSeries returns the analyzed series for symbol
func (a *App) GetSeries(ctx context.Context, symbol string) (*models.SeriesResult, error) {
	if a.series == nil {
		return nil, fmt.Errorf("series provider not initialized")
	}
	return a.series.GetSeries(ctx, symbol)
}

// GenerateReport produces a fresh narrative report for symbol. Requests beyond
// the concurrency limit are rejected immediately with a retryable error.
func (a *App) GenerateReport(ctx context.Context, symbol string) (*models.Report, error) {
	if !a.ReportsEnabled() {
		return nil, fmt.Errorf("%w: set %s to enable reports", models.ErrConfigurationMissing, a.cfg.LLMCredentialName())
	}

	select {
	case a.reportSem <- struct{}{}:
		defer func() { <-a.reportSem }()
	default:
		return nil, fmt.Errorf("%w: report queue full, too many concurrent requests - try again later", models.ErrReportGenerationFailed)
	}

	return a.reports.GenerateReport(ctx, symbol)
}

// ReportsEnabled reports whether an LLM credential is configured
func (a *App) ReportsEnabled() bool {
	return a.reports != nil && a.reports.Enabled()
}

// ReportSemCapacity returns the capacity of the report semaphore (for testing)
func (a *App) ReportSemCapacity() int {
	return cap(a.reportSem)
}
