package intents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// DefaultRelayURL is the public solver relay endpoint.
const DefaultRelayURL = "https://solver-relay-v2.chaindefuser.com/rpc"

const (
	quoteRetries    = 5
	quoteRetryDelay = time.Second
	pollInterval    = 200 * time.Millisecond
	pollTimeout     = 30 * time.Second
)

// SettlementStatus is the terminal outcome of polling one published
// intent.
type SettlementStatus string

const (
	SettlementSettled  SettlementStatus = "settled"
	SettlementFailed   SettlementStatus = "failed"
	SettlementNotFound SettlementStatus = "not_found"
	SettlementTimeout  SettlementStatus = "timeout"
)

// Settlement is the result of one poll cycle. TxHash is set only when
// Status is SettlementSettled.
type Settlement struct {
	Status SettlementStatus
	TxHash string
}

// PublishPayload echoes the signed message back to the relay. Message
// must be the exact text that was hashed; Nonce is the base64 form of
// the 32 raw bytes fed into the hash.
type PublishPayload struct {
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Recipient string `json:"recipient"`
}

// SignedData is the NEP-413 signature envelope for publish_intent.
type SignedData struct {
	Payload   PublishPayload `json:"payload"`
	Standard  string         `json:"standard"`
	Signature string         `json:"signature"`
	PublicKey string         `json:"public_key"`
}

// PublishRequest is one publish_intent call: the signed intent plus the
// solver quote hashes it consumes.
type PublishRequest struct {
	QuoteHashes []string   `json:"quote_hashes"`
	SignedData  SignedData `json:"signed_data"`
}

// RelayClient speaks the solver relay's JSON-RPC protocol. All three
// operations are stateless request/response logic; retry-on-timeout
// policy for publishing lives in the Engine, not here.
type RelayClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	// injectable for tests
	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewRelayClient(url string, logger *slog.Logger) *RelayClient {
	if url == "" {
		url = DefaultRelayURL
	}
	return &RelayClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "relay")),
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

type rpcRequest struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Quote requests solver quotes for converting an exact smallest-unit
// amount of assetIn into assetOut. An empty result is treated as
// transient and retried with a fixed delay; exhausting the retries
// yields ErrNoQuoteAvailable.
func (c *RelayClient) Quote(ctx context.Context, assetIn, assetOut, exactAmountIn string) ([]domain.Quote, error) {
	params := map[string]any{
		"defuse_asset_identifier_in":  assetIn,
		"defuse_asset_identifier_out": assetOut,
		"exact_amount_in":             exactAmountIn,
	}

	for attempt := 1; attempt <= quoteRetries; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, quoteRetryDelay); err != nil {
				return nil, err
			}
		}

		raw, err := c.call(ctx, "quote", params)
		if err != nil {
			c.logger.Warn("quote request failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		if string(raw) == "null" || len(raw) == 0 {
			c.logger.Debug("empty quote result, retrying", slog.Int("attempt", attempt))
			continue
		}

		var quotes []struct {
			QuoteHash      string `json:"quote_hash"`
			AssetIn        string `json:"defuse_asset_identifier_in"`
			AssetOut       string `json:"defuse_asset_identifier_out"`
			AmountIn       string `json:"amount_in"`
			AmountOut      string `json:"amount_out"`
			ExpirationTime string `json:"expiration_time"`
		}
		if err := json.Unmarshal(raw, &quotes); err != nil {
			return nil, fmt.Errorf("intents: decode quotes: %w", err)
		}
		if len(quotes) == 0 {
			continue
		}

		out := make([]domain.Quote, 0, len(quotes))
		for _, q := range quotes {
			out = append(out, domain.Quote{
				QuoteHash:      q.QuoteHash,
				DefuseAssetIn:  q.AssetIn,
				DefuseAssetOut: q.AssetOut,
				AmountIn:       q.AmountIn,
				AmountOut:      q.AmountOut,
				ExpirationTime: q.ExpirationTime,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("intents: %s -> %s after %d attempts: %w",
		assetIn, assetOut, quoteRetries, domain.ErrNoQuoteAvailable)
}

// BestQuote selects the quote maximizing amount_out; ties keep the
// first seen. Quotes with non-integer amounts are skipped.
func BestQuote(quotes []domain.Quote) (domain.Quote, bool) {
	var (
		best    domain.Quote
		bestOut *big.Int
	)
	for _, q := range quotes {
		out, ok := new(big.Int).SetString(q.AmountOut, 10)
		if !ok {
			continue
		}
		if bestOut == nil || out.Cmp(bestOut) > 0 {
			best, bestOut = q, out
		}
	}
	return best, bestOut != nil
}

// PublishIntent submits a signed intent. A non-"OK" relay status is a
// terminal rejection for this attempt and is not retried here.
func (c *RelayClient) PublishIntent(ctx context.Context, req PublishRequest) (string, error) {
	raw, err := c.call(ctx, "publish_intent", req)
	if err != nil {
		return "", fmt.Errorf("intents: publish intent: %w", err)
	}

	var result struct {
		Status     string   `json:"status"`
		IntentHash string   `json:"intent_hash"`
		Reason     string   `json:"reason"`
		Errors     []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("intents: decode publish result: %w", err)
	}
	if result.Status != "OK" {
		return "", fmt.Errorf("intents: intent rejected: status=%s reason=%s", result.Status, result.Reason)
	}
	return result.IntentHash, nil
}

// PollSettlement polls get_status until a terminal state or the poll
// timeout. It blocks the caller for up to pollTimeout; it never retries
// the publish itself.
func (c *RelayClient) PollSettlement(ctx context.Context, intentHash string) (Settlement, error) {
	params := map[string]any{"intent_hash": intentHash}
	deadline := c.now().Add(pollTimeout)

	for {
		if err := c.sleep(ctx, pollInterval); err != nil {
			return Settlement{}, err
		}

		raw, err := c.call(ctx, "get_status", params)
		if err != nil {
			return Settlement{}, fmt.Errorf("intents: get status: %w", err)
		}

		var result struct {
			Status string `json:"status"`
			Data   struct {
				Hash string `json:"hash"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return Settlement{}, fmt.Errorf("intents: decode status: %w", err)
		}

		switch result.Status {
		case "SETTLED":
			return Settlement{Status: SettlementSettled, TxHash: result.Data.Hash}, nil
		case "FAILED":
			return Settlement{Status: SettlementFailed}, nil
		case "NOT_FOUND_OR_NOT_VALID", "NOT_FOUND_OR_NOT_VALID_ANYMORE":
			return Settlement{Status: SettlementNotFound}, nil
		}

		if c.now().After(deadline) {
			c.logger.Warn("settlement poll timed out",
				slog.String("intent_hash", intentHash),
				slog.String("last_status", result.Status))
			return Settlement{Status: SettlementTimeout}, nil
		}
	}
}

func (c *RelayClient) call(ctx context.Context, method string, param any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  method,
		Params:  []any{param},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
