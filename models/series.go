package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AnalyzedBar is a price bar with its derived indicator columns.
// Indicator fields are null until their trailing window is filled.
type AnalyzedBar struct {
	PriceBar
	MA20  decimal.NullDecimal `json:"ma20"`
	MA50  decimal.NullDecimal `json:"ma50"`
	MA200 decimal.NullDecimal `json:"ma200"`
	RSI   *float64            `json:"rsi"`
}

// AnalyzedSeries is an ordered, oldest-first sequence of analyzed bars
type AnalyzedSeries []AnalyzedBar

// Latest returns the most recent bar
func (s AnalyzedSeries) Latest() (AnalyzedBar, bool) {
	if len(s) == 0 {
		return AnalyzedBar{}, false
	}
	return s[len(s)-1], true
}

// Previous returns the bar before the most recent one
func (s AnalyzedSeries) Previous() (AnalyzedBar, bool) {
	if len(s) < 2 {
		return AnalyzedBar{}, false
	}
	return s[len(s)-2], true
}

// Validate checks the strictly-increasing date invariant and bar values
func (s AnalyzedSeries) Validate() error {
	for i, bar := range s {
		if err := bar.Validate(); err != nil {
			return err
		}
		if i > 0 && !s[i-1].Date.Before(bar.Date.Time) {
			return fmt.Errorf("bar %d (%s) is not after bar %d (%s)", i, bar.Date, i-1, s[i-1].Date)
		}
		if bar.RSI != nil && (*bar.RSI < 0 || *bar.RSI > 100) {
			return fmt.Errorf("bar %s: rsi %v out of range", bar.Date, *bar.RSI)
		}
	}
	return nil
}

// CacheStatus tags where a series came from
type CacheStatus string

const (
	CacheStatusCached    CacheStatus = "cached"
	CacheStatusRefreshed CacheStatus = "refreshed"
)

// CacheEntry is the persisted record for one symbol
type CacheEntry struct {
	Symbol    string         `json:"symbol"`
	FetchedAt time.Time      `json:"fetched_at"`
	Metadata  StockMetadata  `json:"metadata"`
	Series    AnalyzedSeries `json:"series"`
}

// SeriesResult is an analyzed series together with its metadata and freshness tag
type SeriesResult struct {
	Symbol    string         `json:"symbol"`
	Name      string         `json:"name"`
	Series    AnalyzedSeries `json:"series"`
	Metadata  StockMetadata  `json:"metadata"`
	Status    CacheStatus    `json:"cache_status"`
	FetchedAt time.Time      `json:"fetched_at"`
}
