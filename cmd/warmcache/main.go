// Package main pre-warms the on-disk series cache for the supported symbols.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stock-research/config"
	"stock-research/internal/app"
	"stock-research/models"
	"stock-research/observability"
)

// seriesGetter is the slice of App the warmer needs
type seriesGetter interface {
	GetSeries(ctx context.Context, symbol string) (*models.SeriesResult, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warmcache [symbol...]",
		Short: "Fetch and cache the analyzed series for supported symbols",
		Long: `Loads each symbol through the same cache path the dashboard uses.
Fresh entries are left alone; missing or expired ones are refreshed from the
configured market data provider. With no arguments every supported symbol is warmed.`,
		Example: `  warmcache
  warmcache TCS.NS INFY.NS --parallel 1`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel, _ := cmd.Flags().GetInt("parallel")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger(cfg.Log.Format, observability.ParseLevel(cfg.Log.Level))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			application, err := app.NewFromConfig(ctx, cfg)
			if err != nil {
				return err
			}

			symbols := make([]string, 0, len(args))
			for _, a := range args {
				symbols = append(symbols, strings.ToUpper(strings.TrimSpace(a)))
			}
			if len(symbols) == 0 {
				for _, s := range application.ListSupportedSymbols() {
					symbols = append(symbols, s.Symbol)
				}
			}

			if failed := warm(ctx, application, symbols, parallel, cmd.OutOrStdout()); failed > 0 {
				return fmt.Errorf("%d of %d symbols failed", failed, len(symbols))
			}
			return nil
		},
	}

	cmd.Flags().Int("parallel", 2, "number of symbols to refresh concurrently")
	cmd.Flags().Duration("timeout", 5*time.Minute, "overall deadline for the run")
	return cmd
}

// warm loads every symbol and writes one status line per symbol to out.
// It returns the number of symbols that could not be loaded.
func warm(ctx context.Context, svc seriesGetter, symbols []string, parallel int, out io.Writer) int {
	if parallel < 1 {
		parallel = 1
	}

	var (
		mu     sync.Mutex
		failed int
	)
	lines := make([]string, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, symbol := range symbols {
		g.Go(func() error {
			result, err := svc.GetSeries(gctx, symbol)
			if err != nil {
				observability.WithSymbol(symbol).Error("warm failed", "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				lines[i] = fmt.Sprintf("%-14s error     %v", symbol, err)
				return nil
			}
			lines[i] = fmt.Sprintf("%-14s %-9s %4d bars  fetched %s",
				symbol, result.Status, len(result.Series), result.FetchedAt.Format(time.RFC3339))
			return nil
		})
	}
	_ = g.Wait()

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return failed
}
