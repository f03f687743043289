package intents

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
)

// SwapMessage builds the token_diff signing message. The returned text
// is what gets hashed and signed, and the publish request must carry it
// byte for byte, so it is assembled by hand: map-based JSON encoding
// would not keep the tokenIn-before-tokenOut key order stable.
func SwapMessage(signerID, assetIn, amountIn, assetOut, amountOut, deadline string) string {
	var b strings.Builder
	b.WriteString(`{"signer_id":`)
	b.WriteString(jsonString(signerID))
	b.WriteString(`,"deadline":`)
	b.WriteString(jsonString(deadline))
	b.WriteString(`,"intents":[{"intent":"token_diff","diff":{`)
	b.WriteString(jsonString(assetIn))
	b.WriteString(`:`)
	b.WriteString(jsonString("-" + amountIn))
	b.WriteString(`,`)
	b.WriteString(jsonString(assetOut))
	b.WriteString(`:`)
	b.WriteString(jsonString(amountOut))
	b.WriteString(`}}]}`)
	return b.String()
}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return string(b)
}

// NewNonce draws a fresh 32-byte random nonce. Nonces are single-use:
// one per swap request, never shared between requests.
func NewNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("intents: generate nonce: %w", err)
	}
	return nonce, nil
}
