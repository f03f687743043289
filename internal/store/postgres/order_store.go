package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// dbCondition is the JSONB representation of one condition.
type dbCondition struct {
	Metric   string `json:"metric"`
	Token    string `json:"token,omitempty"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

func encodeConditions(conds []domain.Condition) ([]byte, error) {
	out := make([]dbCondition, len(conds))
	for i, c := range conds {
		out[i] = dbCondition{
			Metric:   string(c.Metric),
			Token:    c.Token,
			Operator: string(c.Operator),
			Value:    c.Value,
		}
	}
	return json.Marshal(out)
}

func decodeConditions(raw []byte) ([]domain.Condition, error) {
	var in []dbCondition
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.Condition, len(in))
	for i, c := range in {
		out[i] = domain.Condition{
			Metric:   domain.Metric(c.Metric),
			Token:    c.Token,
			Operator: domain.Operator(c.Operator),
			Value:    c.Value,
		}
	}
	return out, nil
}

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	conds, err := encodeConditions(o.Conditions)
	if err != nil {
		return fmt.Errorf("postgres: encode conditions for %s: %w", o.ID, err)
	}

	const query = `
		INSERT INTO orders (
			id, user_address, conditions,
			action_type, action_token, action_amount,
			notify_on_execute, expires_at, status,
			tx_hash, amount_out, fail_reason,
			created_at, executed_at, failed_at, cancelled_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		o.ID, o.UserAddress, conds,
		string(o.Action.Type), o.Action.Token, o.Action.Amount,
		o.Settings.NotifyOnExecute, o.Settings.ExpiresAt, string(o.Status),
		o.TxHash, o.AmountOut, o.FailReason,
		o.CreatedAt, o.ExecutedAt, o.FailedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, user_address, conditions,
	action_type, action_token, action_amount,
	notify_on_execute, expires_at, status,
	tx_hash, amount_out, fail_reason,
	created_at, executed_at, failed_at, cancelled_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var conds []byte
	var actionType, status string

	err := scanner.Scan(
		&o.ID, &o.UserAddress, &conds,
		&actionType, &o.Action.Token, &o.Action.Amount,
		&o.Settings.NotifyOnExecute, &o.Settings.ExpiresAt, &status,
		&o.TxHash, &o.AmountOut, &o.FailReason,
		&o.CreatedAt, &o.ExecutedAt, &o.FailedAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Action.Type = domain.ActionType(actionType)
	o.Status = domain.OrderStatus(status)
	o.Conditions, err = decodeConditions(conds)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode conditions: %w", err)
	}
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order by ID.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpen returns every open order, oldest first so long-waiting orders
// are evaluated before fresh ones.
func (s *OrderStore) ListOpen(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status = 'open'
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders: %w", err)
	}
	return orders, nil
}

// ListByUser returns a user's orders, newest first, with pagination.
func (s *OrderStore) ListByUser(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE user_address = $1 ORDER BY created_at DESC`
	args := []any{address}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", address, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders for %s: %w", address, err)
	}
	return orders, nil
}

// MarkExecuted finalizes a successful order with its settlement result.
// Only open orders transition; anything else reports ErrNotFound.
func (s *OrderStore) MarkExecuted(ctx context.Context, id, txHash, amountOut string, filledAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET status = 'executed', tx_hash = $2, amount_out = $3, executed_at = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		id, txHash, amountOut, filledAt)
	if err != nil {
		return fmt.Errorf("postgres: mark order %s executed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a terminal execution failure.
func (s *OrderStore) MarkFailed(ctx context.Context, id, reason string, failedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET status = 'failed', fail_reason = $2, failed_at = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		id, reason, failedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark order %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Cancel cancels an open order.
func (s *OrderStore) Cancel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET status = 'cancelled', cancelled_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		id)
	if err != nil {
		return fmt.Errorf("postgres: cancel order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireDue marks every open order whose expiry has passed and reports
// how many rows changed.
func (s *OrderStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET status = 'expired', updated_at = NOW()
		 WHERE status = 'open' AND expires_at IS NOT NULL AND expires_at < $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire due orders: %w", err)
	}
	return tag.RowsAffected(), nil
}
