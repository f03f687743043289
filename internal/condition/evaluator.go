// Package condition evaluates order conditions against a market
// snapshot. Evaluation is pure: missing market data yields false rather
// than an error, so absent data can never trigger a trade.
package condition

import (
	"math"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// Absolute equality tolerances per metric. Market caps compare in
// millions of dollars.
const (
	priceTolerance = 0.001
	capTolerance   = 0.1
	domTolerance   = 0.1
)

// Evaluate reports whether a single condition holds against the snapshot.
func Evaluate(c domain.Condition, snap domain.MarketSnapshot) bool {
	threshold, err := c.Threshold()
	if err != nil {
		return false
	}

	var actual, tolerance float64
	switch c.Metric {
	case domain.MetricPrice:
		p, ok := snap.Price(c.Token)
		if !ok {
			return false
		}
		actual, tolerance = p, priceTolerance
	case domain.MetricMarketCap:
		cap, ok := snap.MarketCap(c.Token)
		if !ok {
			return false
		}
		actual, tolerance = cap/1e6, capTolerance
	case domain.MetricBTCDom:
		if snap.BTCDominance == 0 {
			return false
		}
		actual, tolerance = snap.BTCDominance, domTolerance
	default:
		return false
	}

	switch c.Operator {
	case domain.OpLess:
		return actual < threshold
	case domain.OpGreater:
		return actual > threshold
	case domain.OpEqual:
		return math.Abs(actual-threshold) <= tolerance
	default:
		return false
	}
}

// EvaluateAll applies the order's implicit AND, short-circuiting on the
// first unmet condition. An empty condition list never fires.
func EvaluateAll(conds []domain.Condition, snap domain.MarketSnapshot) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if !Evaluate(c, snap) {
			return false
		}
	}
	return true
}
