package domain

import (
	"fmt"
	"strconv"
)

// Metric names the market quantity a condition reads.
type Metric string

const (
	MetricPrice     Metric = "price"
	MetricMarketCap Metric = "market_cap"
	MetricBTCDom    Metric = "btc_dom"
)

// Operator is the comparison applied to a metric.
type Operator string

const (
	OpLess    Operator = "<"
	OpGreater Operator = ">"
	OpEqual   Operator = "="
)

// Condition is a read-only predicate over a MarketSnapshot. Value is kept
// as the user-supplied decimal string; market_cap values are in millions
// of dollars.
type Condition struct {
	Metric   Metric
	Token    string
	Operator Operator
	Value    string
}

// Threshold parses the condition's numeric value.
func (c Condition) Threshold() (float64, error) {
	v, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("domain: condition value %q: %w", c.Value, ErrInvalidOrder)
	}
	return v, nil
}

// Validate rejects conditions the evaluator cannot act on.
func (c Condition) Validate() error {
	switch c.Metric {
	case MetricPrice, MetricMarketCap:
		if c.Token == "" {
			return fmt.Errorf("domain: %s condition requires a token: %w", c.Metric, ErrInvalidOrder)
		}
	case MetricBTCDom:
	default:
		return fmt.Errorf("domain: unknown metric %q: %w", c.Metric, ErrInvalidOrder)
	}
	switch c.Operator {
	case OpLess, OpGreater, OpEqual:
	default:
		return fmt.Errorf("domain: unknown operator %q: %w", c.Operator, ErrInvalidOrder)
	}
	if _, err := c.Threshold(); err != nil {
		return err
	}
	return nil
}
