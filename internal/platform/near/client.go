// Package near is a minimal NEAR JSON-RPC client covering the two call
// shapes the settlement flow needs: read-only contract views and signed
// function-call transactions. Transactions are serialized with the
// project codec and signed locally; no wallet daemon is involved.
package near

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"github.com/cuongdcdev/shade-trader/internal/intents"
	"github.com/cuongdcdev/shade-trader/internal/serializer"
)

const DefaultRPCURL = "https://rpc.mainnet.near.org"

const ed25519KeyType = 0

// txSchema describes the NEAR transaction wire format. Variant order in
// the action enum is part of the protocol and must not change.
var txSchema = serializer.NewSchema().
	AddStruct("publicKey",
		serializer.Field{Name: "keyType", Type: serializer.U8()},
		serializer.Field{Name: "data", Type: serializer.FixedArray(32, serializer.U8())},
	).
	AddStruct("signature",
		serializer.Field{Name: "keyType", Type: serializer.U8()},
		serializer.Field{Name: "data", Type: serializer.FixedArray(64, serializer.U8())},
	).
	AddStruct("functionCallPermission",
		serializer.Field{Name: "allowance", Type: serializer.Option(serializer.U128())},
		serializer.Field{Name: "receiverId", Type: serializer.Str()},
		serializer.Field{Name: "methodNames", Type: serializer.DynArray(serializer.Str())},
	).
	AddEnum("accessKeyPermission",
		serializer.Field{Name: "functionCall", Type: serializer.StructRef("functionCallPermission")},
		serializer.Field{Name: "fullAccess", Type: serializer.Tuple()},
	).
	AddStruct("accessKey",
		serializer.Field{Name: "nonce", Type: serializer.U64()},
		serializer.Field{Name: "permission", Type: serializer.EnumRef("accessKeyPermission")},
	).
	AddStruct("deployContract",
		serializer.Field{Name: "code", Type: serializer.DynArray(serializer.U8())},
	).
	AddStruct("functionCall",
		serializer.Field{Name: "methodName", Type: serializer.Str()},
		serializer.Field{Name: "args", Type: serializer.DynArray(serializer.U8())},
		serializer.Field{Name: "gas", Type: serializer.U64()},
		serializer.Field{Name: "deposit", Type: serializer.U128()},
	).
	AddStruct("transfer",
		serializer.Field{Name: "deposit", Type: serializer.U128()},
	).
	AddStruct("stake",
		serializer.Field{Name: "stake", Type: serializer.U128()},
		serializer.Field{Name: "publicKey", Type: serializer.StructRef("publicKey")},
	).
	AddStruct("addKey",
		serializer.Field{Name: "publicKey", Type: serializer.StructRef("publicKey")},
		serializer.Field{Name: "accessKey", Type: serializer.StructRef("accessKey")},
	).
	AddStruct("deleteKey",
		serializer.Field{Name: "publicKey", Type: serializer.StructRef("publicKey")},
	).
	AddStruct("deleteAccount",
		serializer.Field{Name: "beneficiaryId", Type: serializer.Str()},
	).
	AddEnum("action",
		serializer.Field{Name: "createAccount", Type: serializer.Tuple()},
		serializer.Field{Name: "deployContract", Type: serializer.StructRef("deployContract")},
		serializer.Field{Name: "functionCall", Type: serializer.StructRef("functionCall")},
		serializer.Field{Name: "transfer", Type: serializer.StructRef("transfer")},
		serializer.Field{Name: "stake", Type: serializer.StructRef("stake")},
		serializer.Field{Name: "addKey", Type: serializer.StructRef("addKey")},
		serializer.Field{Name: "deleteKey", Type: serializer.StructRef("deleteKey")},
		serializer.Field{Name: "deleteAccount", Type: serializer.StructRef("deleteAccount")},
	).
	AddStruct("transaction",
		serializer.Field{Name: "signerId", Type: serializer.Str()},
		serializer.Field{Name: "publicKey", Type: serializer.StructRef("publicKey")},
		serializer.Field{Name: "nonce", Type: serializer.U64()},
		serializer.Field{Name: "receiverId", Type: serializer.Str()},
		serializer.Field{Name: "blockHash", Type: serializer.FixedArray(32, serializer.U8())},
		serializer.Field{Name: "actions", Type: serializer.DynArray(serializer.EnumRef("action"))},
	).
	AddStruct("signedTransaction",
		serializer.Field{Name: "transaction", Type: serializer.StructRef("transaction")},
		serializer.Field{Name: "signature", Type: serializer.StructRef("signature")},
	)

// KeySource resolves the signing key for an account id. Change calls
// look their signer up here, so one client serves every stored wallet.
type KeySource func(ctx context.Context, accountID string) (*intents.Signer, error)

// Client talks to a NEAR JSON-RPC node.
type Client struct {
	rpcURL     string
	keys       KeySource
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(rpcURL string, keys KeySource, logger *slog.Logger) *Client {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	return &Client{
		rpcURL:     rpcURL,
		keys:       keys,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "near")),
	}
}

var _ intents.ChainCaller = (*Client)(nil)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ViewFunction runs a read-only contract method at final head and
// returns the raw JSON the contract produced.
func (c *Client) ViewFunction(ctx context.Context, contractID, method string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("near: encode view args: %w", err)
	}

	var out struct {
		Result []int    `json:"result"`
		Logs   []string `json:"logs"`
	}
	err = c.call(ctx, "query", map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   contractID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("near: view %s.%s: %w", contractID, method, err)
	}

	raw := make([]byte, len(out.Result))
	for i, b := range out.Result {
		raw[i] = byte(b)
	}
	return raw, nil
}

// FunctionCall builds, signs and submits a function-call transaction
// from signerID's account and returns the transaction hash.
func (c *Client) FunctionCall(ctx context.Context, signerID, receiverID, method string, args any, gas uint64, deposit *big.Int) (string, error) {
	signer, err := c.keys(ctx, signerID)
	if err != nil {
		return "", fmt.Errorf("near: resolve key for %s: %w", signerID, err)
	}

	var key struct {
		Nonce     uint64 `json:"nonce"`
		BlockHash string `json:"block_hash"`
	}
	err = c.call(ctx, "query", map[string]any{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   signerID,
		"public_key":   signer.PublicKey(),
	}, &key)
	if err != nil {
		return "", fmt.Errorf("near: view access key: %w", err)
	}

	blockHash, err := base58.Decode(key.BlockHash)
	if err != nil || len(blockHash) != 32 {
		return "", fmt.Errorf("near: bad block hash %q", key.BlockHash)
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("near: encode call args: %w", err)
	}
	if deposit == nil {
		deposit = big.NewInt(0)
	}

	tx := map[string]any{
		"signerId": signerID,
		"publicKey": map[string]any{
			"keyType": ed25519KeyType,
			"data":    signer.PublicKeyBytes(),
		},
		"nonce":      key.Nonce + 1,
		"receiverId": receiverID,
		"blockHash":  blockHash,
		"actions": []any{
			serializer.EnumValue{Variant: "functionCall", Value: map[string]any{
				"methodName": method,
				"args":       argsJSON,
				"gas":        gas,
				"deposit":    deposit,
			}},
		},
	}
	txBytes, err := serializer.Marshal(txSchema, serializer.StructRef("transaction"), tx)
	if err != nil {
		return "", fmt.Errorf("near: serialize transaction: %w", err)
	}

	digest := sha256.Sum256(txBytes)
	signed, err := serializer.Marshal(txSchema, serializer.StructRef("signedTransaction"), map[string]any{
		"transaction": tx,
		"signature": map[string]any{
			"keyType": ed25519KeyType,
			"data":    signer.Sign(digest[:]),
		},
	})
	if err != nil {
		return "", fmt.Errorf("near: serialize signed transaction: %w", err)
	}

	var out struct {
		Transaction struct {
			Hash string `json:"hash"`
		} `json:"transaction"`
		Status map[string]json.RawMessage `json:"status"`
	}
	err = c.call(ctx, "send_tx", map[string]any{
		"signed_tx_base64": base64.StdEncoding.EncodeToString(signed),
		"wait_until":       "EXECUTED_OPTIMISTIC",
	}, &out)
	if err != nil {
		return "", fmt.Errorf("near: send %s.%s: %w", receiverID, method, err)
	}
	if failure, ok := out.Status["Failure"]; ok {
		return "", fmt.Errorf("near: %s.%s failed: %s", receiverID, method, failure)
	}

	c.logger.Info("transaction sent",
		slog.String("receiver", receiverID),
		slog.String("method", method),
		slog.String("tx_hash", out.Transaction.Hash))
	return out.Transaction.Hash, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
