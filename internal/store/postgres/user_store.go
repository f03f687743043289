package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Upsert inserts a user or refreshes an existing one's key and settings.
func (s *UserStore) Upsert(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (address, private_key, telegram_chat_id, notify_default, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			private_key = EXCLUDED.private_key,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			notify_default = EXCLUDED.notify_default`

	_, err := s.pool.Exec(ctx, query,
		u.Address, u.PrivateKey, u.TelegramChatID, u.NotifyDefault, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", u.Address, err)
	}
	return nil
}

// GetByAddress retrieves a user by wallet address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT address, private_key, telegram_chat_id, notify_default, created_at
		 FROM users WHERE address = $1`, address,
	).Scan(&u.Address, &u.PrivateKey, &u.TelegramChatID, &u.NotifyDefault, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", address, err)
	}
	return u, nil
}
