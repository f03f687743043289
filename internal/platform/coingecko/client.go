// Package coingecko fetches token prices, market caps and BTC dominance
// from the CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// defaultIDs maps traded symbols to CoinGecko coin ids.
var defaultIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"NEAR": "near",
	"DOGE": "dogecoin",
	"XRP":  "ripple",
	"SOL":  "solana",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// Client queries CoinGecko. It implements domain.MarketDataProvider;
// callers layer caching on top, the client itself is uncached.
type Client struct {
	baseURL    string
	apiKey     string
	coinIDs    map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a CoinGecko client. Extra symbol-to-id mappings
// extend the built-in set; apiKey may be empty for the public tier.
func NewClient(baseURL, apiKey string, extraIDs map[string]string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ids := make(map[string]string, len(defaultIDs)+len(extraIDs))
	for k, v := range defaultIDs {
		ids[k] = v
	}
	for k, v := range extraIDs {
		ids[strings.ToUpper(k)] = v
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		coinIDs: ids,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With(slog.String("component", "coingecko")),
	}
}

// Snapshot fetches prices, market caps and BTC dominance in one pass.
// Symbols without a known CoinGecko id are simply absent from the
// result; the evaluator treats absent data as "condition not met".
func (c *Client) Snapshot(ctx context.Context, symbols []string) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{
		Prices:     make(map[string]float64),
		MarketCaps: make(map[string]float64),
		FetchedAt:  time.Now().UTC(),
	}

	idToSymbol := make(map[string]string)
	var ids []string
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		id, ok := c.coinIDs[sym]
		if !ok {
			c.logger.Debug("no coingecko id for symbol", slog.String("symbol", sym))
			continue
		}
		if _, dup := idToSymbol[id]; !dup {
			idToSymbol[id] = sym
			ids = append(ids, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dom, err := c.btcDominance(gctx)
		if err != nil {
			return err
		}
		snap.BTCDominance = dom
		return nil
	})
	if len(ids) > 0 {
		g.Go(func() error {
			return c.fillMarkets(gctx, ids, idToSymbol, &snap)
		})
	}
	if err := g.Wait(); err != nil {
		return domain.MarketSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) fillMarkets(ctx context.Context, ids []string, idToSymbol map[string]string, snap *domain.MarketSnapshot) error {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(ids, ","))

	body, err := c.get(ctx, "/coins/markets", q)
	if err != nil {
		return fmt.Errorf("coingecko: fetch markets: %w", err)
	}

	var coins []struct {
		ID           string  `json:"id"`
		CurrentPrice float64 `json:"current_price"`
		MarketCap    float64 `json:"market_cap"`
	}
	if err := json.Unmarshal(body, &coins); err != nil {
		return fmt.Errorf("coingecko: decode markets: %w", err)
	}

	for _, coin := range coins {
		sym, ok := idToSymbol[coin.ID]
		if !ok {
			continue
		}
		snap.Prices[sym] = coin.CurrentPrice
		snap.MarketCaps[sym] = coin.MarketCap
	}
	return nil
}

func (c *Client) btcDominance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "/global", nil)
	if err != nil {
		return 0, fmt.Errorf("coingecko: fetch global: %w", err)
	}

	var global struct {
		Data struct {
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &global); err != nil {
		return 0, fmt.Errorf("coingecko: decode global: %w", err)
	}
	return global.Data.MarketCapPercentage["btc"], nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
