package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/service"
)

// OrderService defines the methods that the order handler requires from
// the service layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Order, error)
	ListOpen(ctx context.Context) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// conditionJSON is the wire form of one order condition.
type conditionJSON struct {
	Metric   string `json:"metric"`
	Token    string `json:"token,omitempty"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// actionJSON is the wire form of an order action.
type actionJSON struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// orderJSON is the wire form of an order.
type orderJSON struct {
	ID              string          `json:"id"`
	UserAddress     string          `json:"user_address"`
	Conditions      []conditionJSON `json:"conditions"`
	Action          actionJSON      `json:"action"`
	NotifyOnExecute bool            `json:"notify_on_execute"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Status          string          `json:"status"`
	TxHash          string          `json:"tx_hash,omitempty"`
	AmountOut       string          `json:"amount_out,omitempty"`
	FailReason      string          `json:"fail_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
	FailedAt        *time.Time      `json:"failed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

func toOrderJSON(o domain.Order) orderJSON {
	conds := make([]conditionJSON, len(o.Conditions))
	for i, c := range o.Conditions {
		conds[i] = conditionJSON{
			Metric:   string(c.Metric),
			Token:    c.Token,
			Operator: string(c.Operator),
			Value:    c.Value,
		}
	}
	return orderJSON{
		ID:              o.ID,
		UserAddress:     o.UserAddress,
		Conditions:      conds,
		Action:          actionJSON{Type: string(o.Action.Type), Token: o.Action.Token, Amount: o.Action.Amount},
		NotifyOnExecute: o.Settings.NotifyOnExecute,
		ExpiresAt:       o.Settings.ExpiresAt,
		Status:          string(o.Status),
		TxHash:          o.TxHash,
		AmountOut:       o.AmountOut,
		FailReason:      o.FailReason,
		CreatedAt:       o.CreatedAt,
		ExecutedAt:      o.ExecutedAt,
		FailedAt:        o.FailedAt,
		CancelledAt:     o.CancelledAt,
	}
}

// placeOrderRequest is the POST /api/orders body.
type placeOrderRequest struct {
	UserAddress     string          `json:"user_address"`
	Conditions      []conditionJSON `json:"conditions"`
	Action          actionJSON      `json:"action"`
	NotifyOnExecute bool            `json:"notify_on_execute"`
	ExpiresAt       *time.Time      `json:"expires_at"`
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderJSON `json:"orders"`
}

// ListOrders returns a user's orders, or every open order when no user
// is given.
// GET /api/orders?user=alice.near&limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")

	var orders []domain.Order
	var err error
	if user != "" {
		orders, err = h.orders.ListByUser(r.Context(), user, parseListOpts(r))
	} else {
		orders, err = h.orders.ListOpen(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	out := make([]orderJSON, len(orders))
	for i, o := range orders {
		out[i] = toOrderJSON(o)
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: out})
}

// PlaceOrder creates a new conditional order.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserAddress == "" {
		writeError(w, http.StatusBadRequest, "user_address is required")
		return
	}

	conds := make([]domain.Condition, len(req.Conditions))
	for i, c := range req.Conditions {
		conds[i] = domain.Condition{
			Metric:   domain.Metric(c.Metric),
			Token:    c.Token,
			Operator: domain.Operator(c.Operator),
			Value:    c.Value,
		}
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserAddress: req.UserAddress,
		Conditions:  conds,
		Action: domain.Action{
			Type:   domain.ActionType(req.Action.Type),
			Token:  req.Action.Token,
			Amount: req.Action.Amount,
		},
		Settings: domain.Settings{
			NotifyOnExecute: req.NotifyOnExecute,
			ExpiresAt:       req.ExpiresAt,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrUnsupportedToken):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown user")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place order failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOrderJSON(order))
}

// GetOrder returns one order by its ID.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(order))
}

// CancelOrder cancels an open order by its ID.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found or not open")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": id,
	})
}
