package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockOrderService struct {
	placeFn      func(ctx context.Context, req service.PlaceOrderRequest) (domain.Order, error)
	cancelFn     func(ctx context.Context, id string) error
	getFn        func(ctx context.Context, id string) (domain.Order, error)
	listByUserFn func(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Order, error)
	listOpenFn   func(ctx context.Context) ([]domain.Order, error)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (domain.Order, error) {
	return m.placeFn(ctx, req)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, id string) error {
	return m.cancelFn(ctx, id)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return m.getFn(ctx, id)
}

func (m *mockOrderService) ListByUser(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Order, error) {
	return m.listByUserFn(ctx, address, opts)
}

func (m *mockOrderService) ListOpen(ctx context.Context) ([]domain.Order, error) {
	return m.listOpenFn(ctx)
}

func newOrderMux(svc *mockOrderService) *http.ServeMux {
	h := NewOrderHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.CancelOrder)
	return mux
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "ord-1",
		UserAddress: "alice.near",
		Conditions: []domain.Condition{
			{Metric: domain.MetricPrice, Token: "NEAR", Operator: domain.OpLess, Value: "3.50"},
		},
		Action:    domain.Action{Type: domain.ActionBuy, Token: "NEAR", Amount: "25"},
		Settings:  domain.Settings{NotifyOnExecute: true},
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPlaceOrderEndpoint(t *testing.T) {
	var captured service.PlaceOrderRequest
	svc := &mockOrderService{
		placeFn: func(_ context.Context, req service.PlaceOrderRequest) (domain.Order, error) {
			captured = req
			out := sampleOrder()
			out.UserAddress = req.UserAddress
			return out, nil
		},
	}

	body := `{
		"user_address": "alice.near",
		"conditions": [{"metric": "price", "token": "NEAR", "operator": "<", "value": "3.50"}],
		"action": {"type": "buy", "token": "NEAR", "amount": "25"},
		"notify_on_execute": true
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newOrderMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "alice.near", captured.UserAddress)
	require.Len(t, captured.Conditions, 1)
	assert.Equal(t, domain.MetricPrice, captured.Conditions[0].Metric)
	assert.Equal(t, domain.OpLess, captured.Conditions[0].Operator)
	assert.Equal(t, domain.ActionBuy, captured.Action.Type)
	assert.True(t, captured.Settings.NotifyOnExecute)

	var resp orderJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, "open", resp.Status)
}

func TestPlaceOrderEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       `{"user_address": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing user address",
			body:       `{"action": {"type": "buy", "token": "NEAR", "amount": "1"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid order",
			body:       `{"user_address": "alice.near"}`,
			serviceErr: domain.ErrInvalidOrder,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported token",
			body:       `{"user_address": "alice.near"}`,
			serviceErr: domain.ErrUnsupportedToken,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			body:       `{"user_address": "ghost.near"}`,
			serviceErr: domain.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				placeFn: func(context.Context, service.PlaceOrderRequest) (domain.Order, error) {
					return domain.Order{}, tt.serviceErr
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newOrderMux(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(_ context.Context, id string) (domain.Order, error) {
			if id != "ord-1" {
				return domain.Order{}, domain.ErrNotFound
			}
			return sampleOrder(), nil
		},
	}
	mux := newOrderMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice.near", resp.UserAddress)
	require.Len(t, resp.Conditions, 1)
	assert.Equal(t, "<", resp.Conditions[0].Operator)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ord-2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	svc := &mockOrderService{
		listByUserFn: func(_ context.Context, address string, opts domain.ListOpts) ([]domain.Order, error) {
			assert.Equal(t, "alice.near", address)
			assert.Equal(t, 10, opts.Limit)
			return []domain.Order{sampleOrder()}, nil
		},
		listOpenFn: func(context.Context) ([]domain.Order, error) {
			return []domain.Order{sampleOrder(), sampleOrder()}, nil
		},
	}
	mux := newOrderMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?user=alice.near&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 2)
}

func TestCancelOrderEndpoint(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, id string) error {
			if id != "ord-1" {
				return domain.ErrNotFound
			}
			return nil
		},
	}
	mux := newOrderMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/ord-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/ord-9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
