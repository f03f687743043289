package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/intents"
)

// OrderService handles the conditional order lifecycle up to the point
// the scheduler picks an order up for execution.
type OrderService struct {
	orders   domain.OrderStore
	users    domain.UserStore
	registry *intents.Registry
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	orders domain.OrderStore,
	users domain.UserStore,
	registry *intents.Registry,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		users:    users,
		registry: registry,
		logger:   logger.With(slog.String("component", "order_service")),
	}
}

// PlaceOrderRequest carries everything needed to open an order.
type PlaceOrderRequest struct {
	UserAddress string
	Conditions  []domain.Condition
	Action      domain.Action
	Settings    domain.Settings
}

// PlaceOrder validates and persists a new open order. The order id is
// assigned here; callers never choose ids.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if _, err := s.users.GetByAddress(ctx, req.UserAddress); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: user %s: %w", req.UserAddress, err)
	}
	if err := s.validate(req); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:          uuid.New().String(),
		UserAddress: req.UserAddress,
		Conditions:  req.Conditions,
		Action:      req.Action,
		Settings:    req.Settings,
		Status:      domain.OrderStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: create order: %w", err)
	}

	s.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("user", order.UserAddress),
		slog.String("action", string(order.Action.Type)),
		slog.String("token", order.Action.Token),
		slog.String("amount", order.Action.Amount))
	return order, nil
}

func (s *OrderService) validate(req PlaceOrderRequest) error {
	if len(req.Conditions) == 0 {
		return fmt.Errorf("order_service: at least one condition required: %w", domain.ErrInvalidOrder)
	}
	for _, c := range req.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	switch req.Action.Type {
	case domain.ActionBuy, domain.ActionSell:
	default:
		return fmt.Errorf("order_service: unknown action %q: %w", req.Action.Type, domain.ErrInvalidOrder)
	}
	if _, err := s.registry.Resolve(req.Action.Token, ""); err != nil {
		return err
	}

	amount, ok := new(big.Float).SetString(req.Action.Amount)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("order_service: amount %q must be a positive decimal: %w",
			req.Action.Amount, domain.ErrInvalidOrder)
	}

	if req.Settings.ExpiresAt != nil && req.Settings.ExpiresAt.Before(time.Now()) {
		return fmt.Errorf("order_service: expiry is in the past: %w", domain.ErrInvalidOrder)
	}
	return nil
}

// CancelOrder cancels an open order.
func (s *OrderService) CancelOrder(ctx context.Context, id string) error {
	if err := s.orders.Cancel(ctx, id); err != nil {
		return fmt.Errorf("order_service: cancel order %q: %w", id, err)
	}
	s.logger.Info("order cancelled", slog.String("order_id", id))
	return nil
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: get order %q: %w", id, err)
	}
	return order, nil
}

// ListByUser returns a user's orders with pagination.
func (s *OrderService) ListByUser(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, address, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list orders for %q: %w", address, err)
	}
	return orders, nil
}

// ListOpen returns every open order across users.
func (s *OrderService) ListOpen(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("order_service: list open orders: %w", err)
	}
	return orders, nil
}

// RegisterUser stores or refreshes a user's wallet and preferences. The
// private key is validated up front so a bad key surfaces at signup
// rather than at execution time.
func (s *OrderService) RegisterUser(ctx context.Context, user domain.User) error {
	if _, err := intents.NewSigner(user.Address, user.PrivateKey); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("order_service: register user %q: %w", user.Address, err)
	}
	s.logger.Info("user registered", slog.String("address", user.Address))
	return nil
}
