// Package mocks provides HTTP mock servers for external APIs used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer provides configurable mock responses for the chart and messages APIs.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	charts    map[string]ChartFixture
	chartCode int // non-zero forces this status on every chart request
	reply     MessageReply

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Body   string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		charts:     make(map[string]ChartFixture),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := ""
	if r.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		body = string(b)
	}

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   body,
	})
	m.mu.Unlock()

	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleChart(w, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case path == "/v1/messages" && r.Method == http.MethodPost:
		m.handleMessages(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// CountRequests returns how many logged requests had the given path prefix.
func (m *MockServer) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetChart configures the history served for symbol.
func (m *MockServer) SetChart(symbol string, fixture ChartFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts[symbol] = fixture
}

// RemoveChart makes symbol unknown to the chart mock.
func (m *MockServer) RemoveChart(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charts, symbol)
}

// SetChartStatus forces every chart request to fail with code; zero restores normal behavior.
func (m *MockServer) SetChartStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartCode = code
}

// SetMessageReply configures the messages mock.
func (m *MockServer) SetMessageReply(reply MessageReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
}

func (m *MockServer) setDefaults() {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	defaults := []struct {
		symbol, name string
		base         float64
	}{
		{"RELIANCE.NS", "Reliance Industries Limited", 2900},
		{"TCS.NS", "Tata Consultancy Services Limited", 3800},
		{"INFY.NS", "Infosys Limited", 1500},
		{"HDFCBANK.NS", "HDFC Bank Limited", 1600},
	}
	for _, d := range defaults {
		m.charts[d.symbol] = GenerateChart(d.symbol, d.name, d.base, end, 250)
	}

	m.reply = MessageReply{
		Text: "**Investment Thesis:** Solid franchise at a fair price.\n\n" +
			"**Key Risks:**\n- Margin pressure\n- Currency moves\n\n" +
			"**Recommendation:** Hold. Valuation already reflects near-term growth.",
	}
}

func (m *MockServer) handleChart(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	code := m.chartCode
	fixture, ok := m.charts[symbol]
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if code != 0 {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"chart":{"result":null,"error":{"code":"Internal","description":"status %d"}}}`, code)
		return
	}

	var env chartEnvelope
	if !ok {
		env.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(env)
		return
	}

	env.Chart.Result = []chartResult{formatChart(fixture)}
	json.NewEncoder(w).Encode(env)
}

func (m *MockServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	reply := m.reply
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if reply.StatusCode != 0 && reply.StatusCode != http.StatusOK {
		w.WriteHeader(reply.StatusCode)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]string{"type": reply.ErrorType, "message": "mock failure"},
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_mock",
		"type":        "message",
		"role":        "assistant",
		"model":       "mock-model",
		"stop_reason": "end_turn",
		"content":     []map[string]string{{"type": "text", "text": reply.Text}},
		"usage":       map[string]int{"input_tokens": 400, "output_tokens": 120},
	})
}

func formatChart(f ChartFixture) chartResult {
	var res chartResult
	res.Meta = f.Meta
	q := chartQuote{}
	for _, b := range f.Bars {
		res.Timestamp = append(res.Timestamp, b.Timestamp)
		vol := float64(b.Volume)
		q.Open = append(q.Open, ptr(b.Open))
		q.High = append(q.High, ptr(b.High))
		q.Low = append(q.Low, ptr(b.Low))
		q.Close = append(q.Close, ptr(b.Close))
		q.Volume = append(q.Volume, &vol)
	}
	res.Indicators.Quote = []chartQuote{q}
	return res
}

func ptr(v float64) *float64 { return &v }

// GenerateChart builds count consecutive daily bars ending at end with a gentle
// oscillating trend around base.
func GenerateChart(symbol, name string, base float64, end time.Time, count int) ChartFixture {
	const ist = 19800 // +05:30

	bars := make([]ChartBar, 0, count)
	hi, lo := 0.0, math.MaxFloat64
	for i := 0; i < count; i++ {
		day := end.AddDate(0, 0, i-count+1)
		c := math.Round((base+float64(i)*0.8+20*math.Sin(float64(i)/7))*100) / 100
		bar := ChartBar{
			// 09:15 local open
			Timestamp: day.Unix() + 3*3600 + 45*60,
			Open:      c - 4,
			High:      c + 6,
			Low:       c - 7,
			Close:     c,
			Volume:    int64(1_000_000 + i*1000),
		}
		hi = math.Max(hi, bar.High)
		lo = math.Min(lo, bar.Low)
		bars = append(bars, bar)
	}

	return ChartFixture{
		Meta: ChartMeta{
			Symbol:           symbol,
			Currency:         "INR",
			LongName:         name,
			GMTOffset:        ist,
			FiftyTwoWeekHigh: hi,
			FiftyTwoWeekLow:  lo,
		},
		Bars: bars,
	}
}
