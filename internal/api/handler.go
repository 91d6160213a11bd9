package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stock-research/config"
	"stock-research/internal/app"
	"stock-research/models"
	"stock-research/observability"
	"stock-research/services"
	"stock-research/templates"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.&^-]+$`)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// StocksResponse lists the supported symbols
type StocksResponse struct {
	Stocks         []models.StockInfo `json:"stocks"`
	ReportsEnabled bool               `json:"reports_enabled"`
}

// StockResponse is the dashboard payload for one symbol
type StockResponse struct {
	Symbol       string                `json:"symbol"`
	Name         string                `json:"name"`
	Metadata     models.StockMetadata  `json:"metadata"`
	CurrentPrice *string               `json:"current_price"`
	PriceData    models.AnalyzedSeries `json:"price_data"`
	CacheStatus  models.CacheStatus    `json:"cache_status"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

// ReportResponse wraps a generated report
type ReportResponse struct {
	Success     bool   `json:"success"`
	Report      string `json:"report"`
	GeneratedAt string `json:"generated_at"`
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HandleIndex serves the dashboard shell using templ
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.Index(h.app.ListSupportedSymbols(), h.app.ReportsEnabled())
	if err := page.Render(r.Context(), w); err != nil {
		observability.Error("failed to render index", "error", err)
	}
}

// HandleHealth reports whether every upstream breaker is closed
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	registry := services.GetGlobalRegistry()
	open := registry.OpenBreakers()

	status := "ok"
	if len(open) > 0 {
		status = "degraded"
	}

	h.jsonResponse(w, map[string]any{
		"status":           status,
		"reports_enabled":  h.app.ReportsEnabled(),
		"market_data":      h.cfg.MarketData.Provider,
		"open_breakers":    open,
		"circuit_breakers": registry.Status(),
	})
}

// HandleListStocks returns the supported symbols
func (h *Handler) HandleListStocks(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, StocksResponse{
		Stocks:         h.app.ListSupportedSymbols(),
		ReportsEnabled: h.app.ReportsEnabled(),
	})
}

// HandleGetStock returns the analyzed price series and metadata for a symbol
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.symbolParam(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest, false)
		return
	}

	result, err := h.app.GetSeries(r.Context(), symbol)
	if err != nil {
		h.appError(w, symbol, err)
		return
	}

	resp := StockResponse{
		Symbol:      result.Symbol,
		Name:        result.Name,
		Metadata:    result.Metadata,
		PriceData:   result.Series,
		CacheStatus: result.Status,
		FetchedAt:   result.FetchedAt,
	}
	if latest, ok := result.Series.Latest(); ok {
		price := latest.Close.String()
		resp.CurrentPrice = &price
	}
	h.jsonResponse(w, resp)
}

// HandleGetReport generates a fresh narrative report for a symbol
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.symbolParam(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest, false)
		return
	}

	report, err := h.app.GenerateReport(r.Context(), symbol)
	if err != nil {
		h.appError(w, symbol, err)
		return
	}

	h.jsonResponse(w, ReportResponse{
		Success:     true,
		Report:      report.Content,
		GeneratedAt: report.GeneratedAt.Format("2006-01-02 15:04:05"),
		ID:          report.ID.String(),
		Symbol:      report.Symbol,
		Provider:    report.Provider,
		Model:       report.Model,
	})
}

// Helper functions

func (h *Handler) symbolParam(r *http.Request) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if err := h.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

// ValidateSymbol validates the format of a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long (max 20 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// StatusForError maps the error taxonomy onto HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownSymbol):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrUpstreamUnavailable), errors.Is(err, models.ErrReportGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) appError(w http.ResponseWriter, symbol string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		observability.WithSymbol(symbol).Error("request failed", "status", status, "error", err)
	}
	h.jsonError(w, err.Error(), status, models.IsRetryable(err))
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Retryable: retryable})
}
