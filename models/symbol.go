package models

import (
	"fmt"
	"strings"
)

// StockInfo pairs a ticker with its display name
type StockInfo struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
}

// SymbolSet is the immutable allow-list of supported tickers.
// It is built once at startup and shared read-only.
type SymbolSet struct {
	ordered []StockInfo
	byKey   map[string]StockInfo
}

// DefaultStocks is the allow-list used when no symbols file is configured
var DefaultStocks = []StockInfo{
	{Symbol: "RELIANCE.NS", Name: "Reliance Industries"},
	{Symbol: "TCS.NS", Name: "Tata Consultancy Services"},
	{Symbol: "INFY.NS", Name: "Infosys"},
	{Symbol: "HDFCBANK.NS", Name: "HDFC Bank"},
}

// NewSymbolSet builds a SymbolSet, rejecting blank or duplicate symbols
func NewSymbolSet(stocks []StockInfo) (*SymbolSet, error) {
	if len(stocks) == 0 {
		return nil, fmt.Errorf("symbol list is empty")
	}

	set := &SymbolSet{
		ordered: make([]StockInfo, 0, len(stocks)),
		byKey:   make(map[string]StockInfo, len(stocks)),
	}
	for _, s := range stocks {
		s.Symbol = strings.TrimSpace(s.Symbol)
		if s.Symbol == "" {
			return nil, fmt.Errorf("symbol list contains a blank symbol")
		}
		if _, dup := set.byKey[s.Symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %q", s.Symbol)
		}
		if s.Name == "" {
			s.Name = s.Symbol
		}
		set.ordered = append(set.ordered, s)
		set.byKey[s.Symbol] = s
	}
	return set, nil
}

// Lookup returns the stock for symbol, if supported
func (s *SymbolSet) Lookup(symbol string) (StockInfo, bool) {
	info, ok := s.byKey[symbol]
	return info, ok
}

// Contains reports whether symbol is supported
func (s *SymbolSet) Contains(symbol string) bool {
	_, ok := s.byKey[symbol]
	return ok
}

// List returns a copy of the supported stocks in configuration order
func (s *SymbolSet) List() []StockInfo {
	out := make([]StockInfo, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of supported symbols
func (s *SymbolSet) Len() int {
	return len(s.ordered)
}
