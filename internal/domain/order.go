package domain

import (
	"time"
)

// ActionType indicates which side of the base pair to trade.
type ActionType string

const (
	ActionBuy  ActionType = "buy"
	ActionSell ActionType = "sell"
)

// OrderStatus tracks the conditional order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusOpen
}

// Action is the trade to perform once all conditions hold. Amount is in
// human-readable units of the traded token.
type Action struct {
	Type   ActionType
	Token  string
	Amount string
}

// Settings are per-order user preferences.
type Settings struct {
	NotifyOnExecute bool
	ExpiresAt       *time.Time
}

// Order represents a user's conditional trade. Conditions are an implicit
// AND; the order fires when every condition holds against one snapshot.
type Order struct {
	ID          string
	UserAddress string
	Conditions  []Condition
	Action      Action
	Settings    Settings
	Status      OrderStatus
	TxHash      string
	AmountOut   string
	FailReason  string
	CreatedAt   time.Time
	ExecutedAt  *time.Time
	FailedAt    *time.Time
	CancelledAt *time.Time
}

// Expired reports whether the order carries an expiry in the past.
func (o Order) Expired(now time.Time) bool {
	return o.Settings.ExpiresAt != nil && o.Settings.ExpiresAt.Before(now)
}
