package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongdcdev/shade-trader/internal/service"
)

// WalletService defines the methods that the wallet handler requires from
// the service layer.
type WalletService interface {
	Balances(ctx context.Context, address string) ([]service.TokenBalance, error)
}

// WalletHandler serves wallet balance endpoints.
type WalletHandler struct {
	wallets WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a WalletHandler with the given service and logger.
func NewWalletHandler(wallets WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		logger:  logger,
	}
}

// tokenBalanceJSON is the wire form of one token balance.
type tokenBalanceJSON struct {
	Symbol     string `json:"symbol"`
	AssetID    string `json:"asset_id"`
	Blockchain string `json:"blockchain"`
	Amount     string `json:"amount"`
}

// balancesResponse wraps the wallet balances response.
type balancesResponse struct {
	Address  string             `json:"address"`
	Balances []tokenBalanceJSON `json:"balances"`
}

// Balances returns the non-zero settlement balances held by an address.
// GET /api/wallets/{address}/balances
func (h *WalletHandler) Balances(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

	balances, err := h.wallets.Balances(r.Context(), address)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: wallet balances failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch balances")
		return
	}

	out := make([]tokenBalanceJSON, len(balances))
	for i, b := range balances {
		out[i] = tokenBalanceJSON{
			Symbol:     b.Symbol,
			AssetID:    b.AssetID,
			Blockchain: b.Blockchain,
			Amount:     b.Amount,
		}
	}
	writeJSON(w, http.StatusOK, balancesResponse{Address: address, Balances: out})
}
