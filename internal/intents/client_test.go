package intents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances its time by the slept duration instead of waiting.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	log []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.log = append(c.log, d)
	return nil
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func newTestRelay(t *testing.T, handler http.HandlerFunc) (*RelayClient, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewRelayClient(srv.URL, discardLogger())
	clock := newFakeClock()
	c.sleep = clock.sleep
	c.now = clock.now
	return c, clock
}

func rpcMethod(t *testing.T, r *http.Request) (string, json.RawMessage) {
	t.Helper()
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	require.Len(t, req.Params, 1)
	return req.Method, req.Params[0]
}

func TestQuoteRetriesEmptyResult(t *testing.T) {
	var calls int
	client, clock := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		method, _ := rpcMethod(t, r)
		require.Equal(t, "quote", method)
		calls++
		if calls < 3 {
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
			return
		}
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":[
			{"quote_hash":"q1","amount_in":"100","amount_out":"250","expiration_time":"2026-01-01T00:05:00.000Z"}
		]}`)
	})

	quotes, err := client.Quote(context.Background(), "nep141:a", "nep141:b", "100")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "q1", quotes[0].QuoteHash)
	assert.Equal(t, 3, calls)
	// one fixed delay before each retry
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.log)
}

func TestQuoteExhaustsRetries(t *testing.T) {
	var calls int
	client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
	})

	_, err := client.Quote(context.Background(), "nep141:a", "nep141:b", "100")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoQuoteAvailable)
	assert.Equal(t, quoteRetries, calls)
}

func TestQuoteSendsRequestParams(t *testing.T) {
	client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		_, params := rpcMethod(t, r)
		var p map[string]string
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, "nep141:a", p["defuse_asset_identifier_in"])
		assert.Equal(t, "nep141:b", p["defuse_asset_identifier_out"])
		assert.Equal(t, "100", p["exact_amount_in"])
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":[{"quote_hash":"q","amount_in":"100","amount_out":"1","expiration_time":"t"}]}`)
	})

	_, err := client.Quote(context.Background(), "nep141:a", "nep141:b", "100")
	require.NoError(t, err)
}

func TestBestQuote(t *testing.T) {
	quotes := []domain.Quote{
		{QuoteHash: "a", AmountOut: "100"},
		{QuoteHash: "b", AmountOut: "150"},
		{QuoteHash: "c", AmountOut: "120"},
	}
	best, ok := BestQuote(quotes)
	require.True(t, ok)
	assert.Equal(t, "b", best.QuoteHash)

	// ties keep the first seen
	best, ok = BestQuote([]domain.Quote{
		{QuoteHash: "first", AmountOut: "150"},
		{QuoteHash: "second", AmountOut: "150"},
	})
	require.True(t, ok)
	assert.Equal(t, "first", best.QuoteHash)

	_, ok = BestQuote(nil)
	assert.False(t, ok)
}

func TestPublishIntent(t *testing.T) {
	client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		method, params := rpcMethod(t, r)
		require.Equal(t, "publish_intent", method)
		var req PublishRequest
		require.NoError(t, json.Unmarshal(params, &req))
		assert.Equal(t, []string{"q1"}, req.QuoteHashes)
		assert.Equal(t, "nep413", req.SignedData.Standard)
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"OK","intent_hash":"ih1"}}`)
	})

	hash, err := client.PublishIntent(context.Background(), PublishRequest{
		QuoteHashes: []string{"q1"},
		SignedData:  SignedData{Standard: "nep413"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ih1", hash)
}

func TestPublishIntentRejected(t *testing.T) {
	client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"FAILED","reason":"expired"}}`)
	})

	_, err := client.PublishIntent(context.Background(), PublishRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPollSettlementTerminalStates(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     Settlement
	}{
		{
			name:     "settled",
			response: `{"status":"SETTLED","data":{"hash":"tx123"}}`,
			want:     Settlement{Status: SettlementSettled, TxHash: "tx123"},
		},
		{
			name:     "failed",
			response: `{"status":"FAILED"}`,
			want:     Settlement{Status: SettlementFailed},
		},
		{
			name:     "not found",
			response: `{"status":"NOT_FOUND_OR_NOT_VALID"}`,
			want:     Settlement{Status: SettlementNotFound},
		},
		{
			name:     "no longer valid",
			response: `{"status":"NOT_FOUND_OR_NOT_VALID_ANYMORE"}`,
			want:     Settlement{Status: SettlementNotFound},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
				method, _ := rpcMethod(t, r)
				require.Equal(t, "get_status", method)
				io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":`+tc.response+`}`)
			})

			got, err := client.PollSettlement(context.Background(), "ih1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPollSettlementWaitsForTerminal(t *testing.T) {
	var calls int
	client, clock := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 4 {
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"PENDING"}}`)
			return
		}
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"SETTLED","data":{"hash":"tx"}}}`)
	})

	got, err := client.PollSettlement(context.Background(), "ih1")
	require.NoError(t, err)
	assert.Equal(t, SettlementSettled, got.Status)
	assert.Equal(t, 4, calls)
	for _, d := range clock.log {
		assert.Equal(t, pollInterval, d)
	}
}

func TestPollSettlementTimesOut(t *testing.T) {
	client, _ := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"status":"PENDING"}}`)
	})

	got, err := client.PollSettlement(context.Background(), "ih1")
	require.NoError(t, err)
	assert.Equal(t, SettlementTimeout, got.Status)
}
