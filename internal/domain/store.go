package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// OrderStore persists conditional orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListOpen(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, address string, opts ListOpts) ([]Order, error)
	MarkExecuted(ctx context.Context, id, txHash, amountOut string, filledAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, failedAt time.Time) error
	Cancel(ctx context.Context, id string) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// UserStore persists user accounts and signing keys.
type UserStore interface {
	Upsert(ctx context.Context, user User) error
	GetByAddress(ctx context.Context, address string) (User, error)
}
