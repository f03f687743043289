package coingecko

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/markets":
			assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
			assert.Contains(t, r.URL.Query().Get("ids"), "near")
			io.WriteString(w, `[
				{"id":"near","current_price":2.85,"market_cap":3200000000},
				{"id":"bitcoin","current_price":98000,"market_cap":1900000000000}
			]`)
		case "/global":
			io.WriteString(w, `{"data":{"market_cap_percentage":{"btc":57.3,"eth":12.1}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(srv.URL, "", nil, logger)

	snap, err := client.Snapshot(context.Background(), []string{"NEAR", "BTC", "UNKNOWN"})
	require.NoError(t, err)

	assert.InDelta(t, 2.85, snap.Prices["NEAR"], 1e-9)
	assert.InDelta(t, 3.2e9, snap.MarketCaps["NEAR"], 1)
	assert.InDelta(t, 57.3, snap.BTCDominance, 1e-9)

	// unknown symbols are absent, not zero-filled
	_, ok := snap.Prices["UNKNOWN"]
	assert.False(t, ok)
}

func TestSnapshotExtraIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/markets":
			assert.Contains(t, r.URL.Query().Get("ids"), "my-coin")
			io.WriteString(w, `[{"id":"my-coin","current_price":1.5,"market_cap":1000}]`)
		case "/global":
			io.WriteString(w, `{"data":{"market_cap_percentage":{"btc":50}}}`)
		}
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(srv.URL, "", map[string]string{"MYC": "my-coin"}, logger)

	snap, err := client.Snapshot(context.Background(), []string{"myc"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, snap.Prices["MYC"], 1e-9)
}
