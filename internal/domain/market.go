package domain

import (
	"strings"
	"time"
)

// MarketSnapshot is one consistent read of the market, taken once per
// scheduler tick and shared across every order checked in that tick.
// Market caps are in dollars; the evaluator converts to millions.
type MarketSnapshot struct {
	Prices       map[string]float64
	MarketCaps   map[string]float64
	BTCDominance float64
	FetchedAt    time.Time
}

// Price returns the snapshot price for a symbol, reporting presence.
// Symbols are stored uppercase; lookups fold case so an order placed
// with "near" reads the same entry as "NEAR".
func (s MarketSnapshot) Price(symbol string) (float64, bool) {
	p, ok := s.Prices[strings.ToUpper(symbol)]
	return p, ok
}

// MarketCap returns the snapshot market cap for a symbol, reporting presence.
func (s MarketSnapshot) MarketCap(symbol string) (float64, bool) {
	m, ok := s.MarketCaps[strings.ToUpper(symbol)]
	return m, ok
}
