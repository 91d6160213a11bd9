// Package e2e runs the whole dashboard stack in-process: real config,
// wiring, router and file cache, with upstream APIs replaced by a mock server.
package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"stock-research/config"
	"stock-research/e2e/mocks"
	"stock-research/internal/api"
	"stock-research/internal/app"
	"stock-research/models"
	"stock-research/repository"
	"stock-research/services"
)

// DelistedSymbol is in the allow-list but unknown to the chart mock
const DelistedSymbol = "DELISTED.NS"

// Harness is one dashboard instance wired against mock upstreams
type Harness struct {
	t      *testing.T
	mock   *mocks.MockServer
	cfg    *config.Config
	app    *app.App
	router http.Handler
}

// Start builds a dashboard with a fresh cache directory and closed breakers.
// withLLM configures an Anthropic key pointed at the mock. Everything is torn
// down when the test ends.
func Start(t *testing.T, withLLM bool) *Harness {
	t.Helper()

	// breaker state is process-global
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	mock := mocks.NewMockServer()
	t.Cleanup(mock.Close)

	cfg := config.NewTestConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.MarketData.Provider = config.MarketDataYahoo
	cfg.MarketData.YahooBaseURL = mock.URL()
	cfg.MarketData.Timeout = 5 * time.Second
	cfg.LLM.Anthropic.BaseURL = mock.URL()
	if withLLM {
		cfg.LLM.Anthropic.APIKey = "e2e-test-key"
	}

	stocks := append(append([]models.StockInfo{}, models.DefaultStocks...),
		models.StockInfo{Symbol: DelistedSymbol, Name: "Delisted Co"})
	symbols, err := models.NewSymbolSet(stocks)
	if err != nil {
		t.Fatalf("symbol set: %v", err)
	}
	cfg.Symbols = symbols
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid e2e config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	application, err := app.NewFromConfig(ctx, cfg)
	if err != nil {
		cancel()
		t.Fatalf("wiring dashboard: %v", err)
	}
	application.Startup(ctx)
	t.Cleanup(func() {
		application.Shutdown(context.Background())
		cancel()
	})

	return &Harness{
		t:      t,
		mock:   mock,
		cfg:    cfg,
		app:    application,
		router: api.NewRouter(api.NewHandler(application, cfg), cfg),
	}
}

// MockServer returns the upstream mock for scripting responses
func (h *Harness) MockServer() *mocks.MockServer { return h.mock }

// Get sends a GET through the full middleware stack
func (h *Harness) Get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// CachePath is where the series for symbol is persisted
func (h *Harness) CachePath(symbol string) string {
	store, err := repository.NewSeriesStore(h.cfg.Cache.Dir)
	if err != nil {
		h.t.Fatalf("open cache: %v", err)
	}
	return store.Path(symbol)
}

// AgeCache backdates the cache file for symbol by d
func (h *Harness) AgeCache(symbol string, d time.Duration) error {
	old := time.Now().Add(-d)
	return os.Chtimes(h.CachePath(symbol), old, old)
}
