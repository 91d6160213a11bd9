package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stock-research/config"
	"stock-research/models"
)

type fakeSeries struct {
	symbols *models.SymbolSet
	result  *models.SeriesResult
	err     error
	calls   int
}

func (f *fakeSeries) GetSeries(_ context.Context, symbol string) (*models.SeriesResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSeries) Symbols() *models.SymbolSet { return f.symbols }

type fakeReports struct {
	enabled bool
	report  *models.Report
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeReports) GenerateReport(ctx context.Context, symbol string) (*models.Report, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.report, f.err
}

func (f *fakeReports) Enabled() bool { return f.enabled }

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// testApp creates an App with test config for testing
func testApp(series SeriesService, reports ReportService) *App {
	return New(testConfig(), series, reports)
}

func defaultSeries(t *testing.T) *fakeSeries {
	t.Helper()
	set, err := models.NewSymbolSet(models.DefaultStocks)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeSeries{
		symbols: set,
		result:  &models.SeriesResult{Symbol: "TCS.NS", Status: models.CacheStatusCached},
	}
}

func TestNew_WithConcurrencyLimit(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.ConcurrencyLimit = 5
	a := New(cfg, nil, nil)

	if a.ReportSemCapacity() != 5 {
		t.Errorf("expected concurrency limit 5, got %d", a.ReportSemCapacity())
	}
}

func TestNew_NonPositiveConcurrencyLimit(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.ConcurrencyLimit = 0
	a := New(cfg, nil, nil)

	if a.ReportSemCapacity() != 1 {
		t.Errorf("expected concurrency limit 1, got %d", a.ReportSemCapacity())
	}
}

func TestApp_ListSupportedSymbols(t *testing.T) {
	t.Run("series provider not initialized", func(t *testing.T) {
		a := testApp(nil, nil)
		if got := a.ListSupportedSymbols(); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("preserves configuration order", func(t *testing.T) {
		a := testApp(defaultSeries(t), nil)
		got := a.ListSupportedSymbols()
		if len(got) != 4 {
			t.Fatalf("expected 4 symbols, got %d", len(got))
		}
		if got[0].Symbol != "RELIANCE.NS" || got[3].Symbol != "HDFCBANK.NS" {
			t.Errorf("unexpected order: %v", got)
		}
	})
}

func TestApp_GetSeries(t *testing.T) {
	t.Run("series provider not initialized", func(t *testing.T) {
		a := testApp(nil, nil)
		if _, err := a.GetSeries(context.Background(), "TCS.NS"); err == nil {
			t.Error("expected error when series provider is nil")
		}
	})

	t.Run("delegates to provider", func(t *testing.T) {
		series := defaultSeries(t)
		a := testApp(series, nil)

		result, err := a.GetSeries(context.Background(), "TCS.NS")
		if err != nil {
			t.Fatalf("GetSeries() error: %v", err)
		}
		if result.Symbol != "TCS.NS" || series.calls != 1 {
			t.Errorf("unexpected result %+v after %d calls", result, series.calls)
		}
	})

	t.Run("errors propagate unchanged", func(t *testing.T) {
		series := defaultSeries(t)
		series.err = models.ErrUnknownSymbol
		a := testApp(series, nil)

		_, err := a.GetSeries(context.Background(), "AAPL")
		if !errors.Is(err, models.ErrUnknownSymbol) {
			t.Errorf("expected ErrUnknownSymbol, got %v", err)
		}
	})
}

func TestApp_GenerateReport_Disabled(t *testing.T) {
	tests := []struct {
		name    string
		reports ReportService
	}{
		{"no report service", nil},
		{"no llm configured", &fakeReports{enabled: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(defaultSeries(t), tt.reports)
			if a.ReportsEnabled() {
				t.Error("reports should be disabled")
			}
			_, err := a.GenerateReport(context.Background(), "TCS.NS")
			if !errors.Is(err, models.ErrConfigurationMissing) {
				t.Errorf("expected ErrConfigurationMissing, got %v", err)
			}
		})
	}
}

func TestApp_GenerateReport_Success(t *testing.T) {
	want := models.NewReport("TCS.NS", "Tata Consultancy Services", "Hold.", "stub", "stub-model", time.Now())
	a := testApp(defaultSeries(t), &fakeReports{enabled: true, report: want})

	got, err := a.GenerateReport(context.Background(), "TCS.NS")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if got.ID != want.ID {
		t.Error("expected the generator's report")
	}
	if len(a.reportSem) != 0 {
		t.Error("semaphore slot should be released")
	}
}

func TestApp_GenerateReport_RateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.ConcurrencyLimit = 2
	reports := &fakeReports{
		enabled: true,
		report:  &models.Report{Symbol: "TCS.NS"},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	a := New(cfg, defaultSeries(t), reports)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.GenerateReport(context.Background(), "TCS.NS"); err != nil {
				t.Errorf("in-flight request failed: %v", err)
			}
		}()
	}
	<-reports.started
	<-reports.started

	_, err := a.GenerateReport(context.Background(), "TCS.NS")
	if !errors.Is(err, models.ErrReportGenerationFailed) {
		t.Errorf("expected queue-full ErrReportGenerationFailed, got %v", err)
	}
	if !models.IsRetryable(err) {
		t.Error("queue-full rejection should be retryable")
	}

	close(reports.release)
	wg.Wait()
}

func TestApp_Lifecycle(t *testing.T) {
	a := testApp(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.Startup(ctx)
	if a.ctx != ctx {
		t.Error("Startup should store the context")
	}
	a.Shutdown(ctx)
}

func TestNewFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Dir = t.TempDir()

	a, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}
	if a.ReportsEnabled() {
		t.Error("test config has no LLM credential, reports should be disabled")
	}
	if len(a.ListSupportedSymbols()) != cfg.Symbols.Len() {
		t.Errorf("expected %d symbols, got %d", cfg.Symbols.Len(), len(a.ListSupportedSymbols()))
	}

	result, err := a.GetSeries(context.Background(), "INFY.NS")
	if err != nil {
		t.Fatalf("GetSeries() with demo source error: %v", err)
	}
	if result.Status != models.CacheStatusRefreshed || len(result.Series) == 0 {
		t.Errorf("expected a refreshed demo series, got status %s with %d bars", result.Status, len(result.Series))
	}
}

func TestNewFromConfig_WithLLMCredential(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.LLM.Anthropic.APIKey = "test-key"

	a, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}
	if !a.ReportsEnabled() {
		t.Error("reports should be enabled with an API key")
	}
}

func TestNewFromConfig_BadProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.MarketData.Provider = "bogus"

	if _, err := NewFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected error for unsupported market data provider")
	}
}
