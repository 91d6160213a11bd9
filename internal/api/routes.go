package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stock-research/config"
)

// NewRouter mounts the dashboard page, the JSON API and /metrics
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	// report generation is the slowest path and must finish inside the write timeout
	r.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(InstrumentMiddleware)

	r.Get("/", h.HandleIndex)
	r.Get("/index.html", h.HandleIndex)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/stocks", h.HandleListStocks)
		r.Get("/stock/{symbol}", h.HandleGetStock)
		r.Get("/report/{symbol}", h.HandleGetReport)
	})

	return r
}
