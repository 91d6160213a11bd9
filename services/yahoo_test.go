package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-research/models"
)

const yahooChartFixture = `{
  "chart": {
    "result": [{
      "meta": {
        "symbol": "RELIANCE.NS",
        "currency": "INR",
        "longName": "Reliance Industries Limited",
        "shortName": "RELIANCE INDS",
        "gmtoffset": 19800,
        "fiftyTwoWeekHigh": 3217.6,
        "fiftyTwoWeekLow": 2220.3
      },
      "timestamp": [1717386300, 1717472700, 1717559100, 1717645500],
      "indicators": {
        "quote": [{
          "open":   [2900.5, null, 2810.0, 2850.25],
          "high":   [2950.0, null, 2860.1, 2899.9],
          "low":    [2880.0, null, 2790.0, 2840.0],
          "close":  [2940.149951171875, null, 2845.5, 2890.0],
          "volume": [5123400, null, 7300100, null]
        }]
      }
    }],
    "error": null
  }
}`

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooService {
	t.Helper()
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewYahooService(5 * time.Second)
	svc.baseURL = server.URL
	svc.retry = fastRetry()
	return svc
}

func TestYahooService_GetDailyHistory(t *testing.T) {
	var gotPath, gotQuery string
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(yahooChartFixture))
	})

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	bars, meta, err := svc.GetDailyHistory(context.Background(), "RELIANCE.NS", start, end)
	if err != nil {
		t.Fatalf("GetDailyHistory() error: %v", err)
	}

	if gotPath != "/v8/finance/chart/RELIANCE.NS" {
		t.Errorf("path = %q", gotPath)
	}
	for _, want := range []string{"interval=1d", "period1=1717200000", "period2="} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	if len(bars) != 3 {
		t.Fatalf("expected 3 bars (null day skipped), got %d", len(bars))
	}
	if bars[0].Date.String() != "2024-06-03" {
		t.Errorf("first date = %s, want 2024-06-03", bars[0].Date)
	}
	if !bars[0].Close.Equal(decimal.RequireFromString("2940.15")) {
		t.Errorf("first close = %s, want 2940.15 after rounding", bars[0].Close)
	}
	if bars[0].Volume != 5123400 {
		t.Errorf("first volume = %d", bars[0].Volume)
	}
	if bars[2].Volume != 0 {
		t.Errorf("null volume should be 0, got %d", bars[2].Volume)
	}

	if meta.Name != "Reliance Industries Limited" {
		t.Errorf("Name = %q", meta.Name)
	}
	if meta.Currency != "INR" {
		t.Errorf("Currency = %q", meta.Currency)
	}
	if !meta.Week52High.Equal(decimal.RequireFromString("3217.6")) {
		t.Errorf("Week52High = %s", meta.Week52High)
	}
}

func TestYahooService_UnknownSymbol(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"404 with not found error", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{"404 plain", http.StatusNotFound, `not found`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"no timestamps", http.StatusOK, `{"chart":{"result":[{"meta":{"symbol":"X"},"indicators":{"quote":[{}]}}],"error":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, _, err := svc.GetDailyHistory(context.Background(), "NOPE.NS", time.Now().AddDate(-1, 0, 0), time.Now())
			if !errors.Is(err, models.ErrUnknownSymbol) {
				t.Fatalf("expected ErrUnknownSymbol, got %v", err)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Errorf("unknown symbol should not be retried, got %d calls", n)
			}
		})
	}
}

func TestYahooService_ServerErrorRetriesThenFails(t *testing.T) {
	var calls int32
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := svc.GetDailyHistory(context.Background(), "TCS.NS", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, models.ErrUnknownSymbol) {
		t.Error("server error must not be classified as unknown symbol")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestYahooService_RecoversAfterTransientError(t *testing.T) {
	var calls int32
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(yahooChartFixture))
	})

	bars, _, err := svc.GetDailyHistory(context.Background(), "RELIANCE.NS", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("GetDailyHistory() error: %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("expected 3 bars, got %d", len(bars))
	}
}

func TestYahooService_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, _, err := svc.GetDailyHistory(context.Background(), "INFY.NS", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestYahooService_MalformedBody(t *testing.T) {
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":`))
	})

	_, _, err := svc.GetDailyHistory(context.Background(), "INFY.NS", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestParseChart_ShortNameFallback(t *testing.T) {
	var r yahooChartResult
	r.Meta.ShortName = "INFOSYS LTD"
	bars, meta := parseChart(&r)
	if len(bars) != 0 {
		t.Errorf("expected no bars, got %d", len(bars))
	}
	if meta.Name != "INFOSYS LTD" {
		t.Errorf("Name = %q", meta.Name)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{models.ErrUnknownSymbol, "not_found"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "unavailable"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
