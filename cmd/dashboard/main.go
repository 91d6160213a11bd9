// Command dashboard serves the stock research dashboard and its JSON API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stock-research/config"
	"stock-research/internal/api"
	"stock-research/internal/app"
	"stock-research/observability"
)

func main() {
	// a missing .env is normal outside development
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}
	observability.InitLogger(cfg.Log.Format, observability.ParseLevel(cfg.Log.Level))
	if envErr != nil {
		observability.Debug("no .env file loaded", "reason", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		observability.Error("dashboard exited", "error", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests within the shutdown timeout
func serve(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasLLMCredential() {
		observability.Warn("AI reports disabled until the LLM credential is set",
			"provider", cfg.LLM.Provider,
			"missing", cfg.LLMCredentialName())
	}

	application, err := app.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring dashboard: %w", err)
	}
	application.Startup(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewRouter(api.NewHandler(application, cfg), cfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		observability.Info("dashboard listening",
			"url", fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port),
			"symbols", cfg.Symbols.Len(),
			"market_data", cfg.MarketData.Provider)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	observability.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	application.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	observability.Info("dashboard stopped")
	return nil
}
