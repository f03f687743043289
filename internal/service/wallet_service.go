package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cuongdcdev/shade-trader/internal/intents"
)

// BalanceReader fetches settlement-contract balances for asset ids.
type BalanceReader interface {
	Balances(ctx context.Context, accountID string, assetIDs []string) ([]*big.Int, error)
}

// TokenBalance is one asset's balance in human-readable units.
type TokenBalance struct {
	Symbol     string
	AssetID    string
	Blockchain string
	Amount     string
}

// WalletService reads wallet state held on the settlement network.
type WalletService struct {
	reader   BalanceReader
	registry *intents.Registry
	logger   *slog.Logger
}

// NewWalletService creates a WalletService.
func NewWalletService(reader BalanceReader, registry *intents.Registry, logger *slog.Logger) *WalletService {
	return &WalletService{
		reader:   reader,
		registry: registry,
		logger:   logger.With(slog.String("component", "wallet_service")),
	}
}

// Balances returns the non-zero balances an account holds on the
// settlement contract, one entry per token variant, in one batched
// chain call.
func (s *WalletService) Balances(ctx context.Context, address string) ([]TokenBalance, error) {
	variants := s.registry.All()
	if len(variants) == 0 {
		return nil, nil
	}

	assetIDs := make([]string, len(variants))
	for i, v := range variants {
		assetIDs[i] = v.AssetID
	}

	amounts, err := s.reader.Balances(ctx, address, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("wallet_service: balances for %s: %w", address, err)
	}
	if len(amounts) != len(variants) {
		return nil, fmt.Errorf("wallet_service: got %d balances for %d assets", len(amounts), len(variants))
	}

	var out []TokenBalance
	for i, v := range variants {
		if amounts[i] == nil || amounts[i].Sign() == 0 {
			continue
		}
		out = append(out, TokenBalance{
			Symbol:     v.Symbol,
			AssetID:    v.AssetID,
			Blockchain: v.Blockchain,
			Amount:     v.FromSmallestUnit(amounts[i]),
		})
	}
	return out, nil
}
