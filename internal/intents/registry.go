// Package intents executes token swaps against the NEAR Intents
// settlement network: it resolves token variants, obtains solver
// quotes, signs NEP-413 payloads and publishes intents to the solver
// relay, polling until settlement.
package intents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// Registry is the set of token variants tradable on the settlement
// network, keyed by symbol. Symbol matching is case-insensitive.
type Registry struct {
	tokens []domain.TokenVariant
}

func NewRegistry(tokens []domain.TokenVariant) *Registry {
	return &Registry{tokens: tokens}
}

// DefaultRegistry returns the built-in token list used when no remote
// list is configured.
func DefaultRegistry() *Registry {
	return NewRegistry([]domain.TokenVariant{
		{Symbol: "NEAR", AssetID: "nep141:wrap.near", Decimals: 24, Blockchain: "near:mainnet"},
		{Symbol: "USDT", AssetID: "nep141:usdt.tether-token.near", Decimals: 6, Blockchain: "near:mainnet"},
		{Symbol: "USDT", AssetID: "nep141:eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near", Decimals: 6, Blockchain: "eth:mainnet"},
		{Symbol: "USDC", AssetID: "nep141:17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1", Decimals: 6, Blockchain: "near:mainnet"},
		{Symbol: "USDC", AssetID: "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near", Decimals: 6, Blockchain: "eth:mainnet"},
		{Symbol: "BTC", AssetID: "nep141:btc.omft.near", Decimals: 8, Blockchain: "btc:mainnet"},
		{Symbol: "DOGE", AssetID: "nep141:doge.omft.near", Decimals: 8, Blockchain: "doge:mainnet"},
	})
}

// Variants returns every variant registered for a symbol, in
// registration order.
func (r *Registry) Variants(symbol string) []domain.TokenVariant {
	var out []domain.TokenVariant
	for _, t := range r.tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			out = append(out, t)
		}
	}
	return out
}

// Resolve picks the variant for a symbol, narrowed to a specific asset
// id when one is given, defaulting to the first registered variant.
func (r *Registry) Resolve(symbol, assetID string) (domain.TokenVariant, error) {
	variants := r.Variants(symbol)
	if len(variants) == 0 {
		return domain.TokenVariant{}, fmt.Errorf("intents: token %s: %w", symbol, domain.ErrUnsupportedToken)
	}
	if assetID == "" {
		return variants[0], nil
	}
	for _, v := range variants {
		if v.AssetID == assetID {
			return v, nil
		}
	}
	return domain.TokenVariant{}, fmt.Errorf("intents: token %s variant %s: %w", symbol, assetID, domain.ErrUnsupportedToken)
}

// All returns the full registered token list.
func (r *Registry) All() []domain.TokenVariant {
	return r.tokens
}

// FetchRegistry pulls the supported token list from the network's token
// console API and builds a registry from it. Entries without an asset
// id are skipped.
func FetchRegistry(ctx context.Context, client *http.Client, url string) (*Registry, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("intents: create token list request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intents: fetch token list: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("intents: read token list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intents: token list HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Items []struct {
			DefuseAssetID string `json:"defuse_asset_id"`
			Symbol        string `json:"symbol"`
			Decimals      int    `json:"decimals"`
			Blockchain    string `json:"blockchain"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("intents: decode token list: %w", err)
	}

	tokens := make([]domain.TokenVariant, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.DefuseAssetID == "" || it.Symbol == "" {
			continue
		}
		tokens = append(tokens, domain.TokenVariant{
			Symbol:     it.Symbol,
			AssetID:    it.DefuseAssetID,
			Decimals:   it.Decimals,
			Blockchain: it.Blockchain,
		})
	}
	return NewRegistry(tokens), nil
}
