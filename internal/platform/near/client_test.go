package near

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongdcdev/shade-trader/internal/intents"
	"github.com/cuongdcdev/shade-trader/internal/serializer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSigner(t *testing.T) *intents.Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	blob := append(append([]byte(nil), seed...), priv.Public().(ed25519.PublicKey)...)
	s, err := intents.NewSigner("alice.near", base58.Encode(blob))
	require.NoError(t, err)
	return s
}

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func TestViewFunction(t *testing.T) {
	var gotArgs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var call rpcCall
		require.NoError(t, json.Unmarshal(body, &call))
		require.Equal(t, "query", call.Method)

		var params struct {
			RequestType string `json:"request_type"`
			AccountID   string `json:"account_id"`
			MethodName  string `json:"method_name"`
			ArgsBase64  string `json:"args_base64"`
		}
		require.NoError(t, json.Unmarshal(call.Params, &params))
		require.Equal(t, "call_function", params.RequestType)
		require.Equal(t, "intents.near", params.AccountID)
		require.Equal(t, "has_public_key", params.MethodName)
		raw, err := base64.StdEncoding.DecodeString(params.ArgsBase64)
		require.NoError(t, err)
		gotArgs = string(raw)

		result := []byte(`true`)
		ints := make([]int, len(result))
		for i, b := range result {
			ints[i] = int(b)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]any{"result": ints, "logs": []string{}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	raw, err := c.ViewFunction(context.Background(), "intents.near", "has_public_key", map[string]any{
		"account_id": "alice.near",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(raw))
	assert.JSONEq(t, `{"account_id":"alice.near"}`, gotArgs)
}

func TestViewFunctionRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32000, "message": "server error"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, testLogger())
	_, err := c.ViewFunction(context.Background(), "intents.near", "mt_batch_balance_of", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}

func TestFunctionCall(t *testing.T) {
	signer := testSigner(t)
	blockHash := make([]byte, 32)
	for i := range blockHash {
		blockHash[i] = byte(0xA0 + i%16)
	}

	var signedB64 string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var call rpcCall
		require.NoError(t, json.Unmarshal(body, &call))

		switch call.Method {
		case "query":
			var params struct {
				RequestType string `json:"request_type"`
				AccountID   string `json:"account_id"`
				PublicKey   string `json:"public_key"`
			}
			require.NoError(t, json.Unmarshal(call.Params, &params))
			require.Equal(t, "view_access_key", params.RequestType)
			require.Equal(t, "alice.near", params.AccountID)
			require.Equal(t, signer.PublicKey(), params.PublicKey)
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      1,
				"result": map[string]any{
					"nonce":      41,
					"block_hash": base58.Encode(blockHash),
				},
			})
		case "send_tx":
			var params struct {
				SignedTxBase64 string `json:"signed_tx_base64"`
				WaitUntil      string `json:"wait_until"`
			}
			require.NoError(t, json.Unmarshal(call.Params, &params))
			signedB64 = params.SignedTxBase64
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      1,
				"result": map[string]any{
					"transaction": map[string]any{"hash": "FinalTxHash"},
					"status":      map[string]any{"SuccessValue": ""},
				},
			})
		default:
			t.Fatalf("unexpected rpc method %s", call.Method)
		}
	}))
	defer srv.Close()

	keys := func(_ context.Context, accountID string) (*intents.Signer, error) {
		require.Equal(t, "alice.near", accountID)
		return signer, nil
	}
	c := NewClient(srv.URL, keys, testLogger())

	hash, err := c.FunctionCall(context.Background(), "alice.near", "intents.near", "add_public_key",
		map[string]any{"public_key": signer.PublicKey()}, 30_000_000_000_000, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "FinalTxHash", hash)

	// Decode the submitted transaction and check every signed field.
	signed, err := base64.StdEncoding.DecodeString(signedB64)
	require.NoError(t, err)
	decoded, err := serializer.Unmarshal(txSchema, serializer.StructRef("signedTransaction"), signed)
	require.NoError(t, err)

	m := decoded.(map[string]any)
	tx := m["transaction"].(map[string]any)
	assert.Equal(t, "alice.near", tx["signerId"])
	assert.Equal(t, "intents.near", tx["receiverId"])
	assert.Equal(t, uint64(42), tx["nonce"])
	assert.Equal(t, blockHash, tx["blockHash"])

	actions := tx["actions"].([]any)
	require.Len(t, actions, 1)
	action := actions[0].(serializer.EnumValue)
	assert.Equal(t, "functionCall", action.Variant)
	fc := action.Value.(map[string]any)
	assert.Equal(t, "add_public_key", fc["methodName"])
	assert.Equal(t, uint64(30_000_000_000_000), fc["gas"])
	assert.Equal(t, 0, fc["deposit"].(*big.Int).Cmp(big.NewInt(1)))
	assert.JSONEq(t, `{"public_key":"`+signer.PublicKey()+`"}`, string(fc["args"].([]byte)))

	// The signature must cover the sha256 of the transaction bytes.
	txBytes, err := serializer.Marshal(txSchema, serializer.StructRef("transaction"), tx)
	require.NoError(t, err)
	digest := sha256.Sum256(txBytes)
	sig := m["signature"].(map[string]any)
	assert.Equal(t, uint64(0), sig["keyType"])
	assert.True(t, ed25519.Verify(signer.PublicKeyBytes(), digest[:], sig["data"].([]byte)))
}

func TestFunctionCallFailureStatus(t *testing.T) {
	signer := testSigner(t)
	blockHash := base58.Encode(make([]byte, 32))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var call rpcCall
		require.NoError(t, json.Unmarshal(body, &call))
		if call.Method == "query" {
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": 1,
				"result": map[string]any{"nonce": 7, "block_hash": blockHash},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{
				"transaction": map[string]any{"hash": "h"},
				"status": map[string]any{
					"Failure": map[string]any{"error_type": "FunctionCallError"},
				},
			},
		})
	}))
	defer srv.Close()

	keys := func(context.Context, string) (*intents.Signer, error) { return signer, nil }
	c := NewClient(srv.URL, keys, testLogger())

	_, err := c.FunctionCall(context.Background(), "alice.near", "intents.near", "add_public_key", nil, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FunctionCallError")
}
