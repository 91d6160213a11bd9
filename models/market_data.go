package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the text form of a calendar day
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component, stored as UTC midnight
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's own location
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalJSON shadows time.Time's RFC 3339 encoding
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	return d.UnmarshalText([]byte(s[1 : len(s)-1]))
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PriceBar is one trading day of OHLCV data
type PriceBar struct {
	Date   Date            `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Validate checks that all price fields and volume are non-negative
func (b PriceBar) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("bar %s: negative %s %s", b.Date, f.name, f.value)
		}
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s: negative volume %d", b.Date, b.Volume)
	}
	return nil
}

// MarketData is the raw result of a market data fetch
type MarketData struct {
	Symbol   string        `json:"symbol"`
	Bars     []PriceBar    `json:"bars"`
	Metadata StockMetadata `json:"metadata"`
}

// StockMetadata is a point-in-time snapshot of descriptive and fundamental data.
// Nullable fields stay null when the upstream did not report them.
type StockMetadata struct {
	Name          string              `json:"name"`
	Currency      string              `json:"currency,omitempty"`
	Week52High    decimal.Decimal     `json:"week52_high"`
	Week52Low     decimal.Decimal     `json:"week52_low"`
	PERatio       decimal.NullDecimal `json:"pe_ratio"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
	DividendYield decimal.NullDecimal `json:"dividend_yield"`
	Sector        *string             `json:"sector"`
	Industry      *string             `json:"industry"`
	FetchedAt     time.Time           `json:"fetched_at"`
}

// Merge overlays the non-empty fields of other onto m
func (m *StockMetadata) Merge(other StockMetadata) {
	if other.Name != "" {
		m.Name = other.Name
	}
	if other.Currency != "" {
		m.Currency = other.Currency
	}
	if !other.Week52High.IsZero() {
		m.Week52High = other.Week52High
	}
	if !other.Week52Low.IsZero() {
		m.Week52Low = other.Week52Low
	}
	if other.PERatio.Valid {
		m.PERatio = other.PERatio
	}
	if other.MarketCap.Valid {
		m.MarketCap = other.MarketCap
	}
	if other.DividendYield.Valid {
		m.DividendYield = other.DividendYield
	}
	if other.Sector != nil {
		m.Sector = other.Sector
	}
	if other.Industry != nil {
		m.Industry = other.Industry
	}
}

// StringPtr returns a pointer to s, or nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
