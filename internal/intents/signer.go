package intents

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/serializer"
)

const edPrefix = "ed25519:"

// nep413Tag is the NEP-413 payload discriminant prepended to the
// serialized payload before hashing: 2^31 + 413, little-endian.
const nep413Tag = uint32(1<<31 + 413)

// payloadSchema is the NEP-413 off-chain message payload shape. Its
// byte layout feeds the signing hash and must match the verifier.
var payloadSchema = serializer.NewSchema().AddStruct("payload",
	serializer.Field{Name: "message", Type: serializer.Str()},
	serializer.Field{Name: "nonce", Type: serializer.FixedArray(32, serializer.U8())},
	serializer.Field{Name: "recipient", Type: serializer.Str()},
	serializer.Field{Name: "callbackUrl", Type: serializer.Option(serializer.Str())},
)

// IntentHash computes the NEP-413 signing hash for a message addressed
// to a recipient contract with the given nonce.
func IntentHash(message, recipient string, nonce [32]byte) ([]byte, error) {
	payload, err := serializer.Marshal(payloadSchema, serializer.StructRef("payload"), map[string]any{
		"message":     message,
		"nonce":       nonce[:],
		"recipient":   recipient,
		"callbackUrl": nil,
	})
	if err != nil {
		return nil, fmt.Errorf("intents: serialize payload: %w", err)
	}

	data := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(data, nep413Tag)
	data = append(data, payload...)

	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Signer holds one account's ed25519 signing key.
type Signer struct {
	accountID string
	key       ed25519.PrivateKey
}

// NewSigner parses a NEAR-style private key: base58 of the 64-byte
// seed-plus-public-key blob, optionally prefixed with "ed25519:". Any
// other decoded length is a fatal configuration error, never padded or
// truncated.
func NewSigner(accountID, privateKey string) (*Signer, error) {
	raw, err := base58.Decode(strings.TrimPrefix(privateKey, edPrefix))
	if err != nil {
		return nil, fmt.Errorf("intents: decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("intents: key decodes to %d bytes, want %d: %w",
			len(raw), ed25519.PrivateKeySize, domain.ErrInvalidKeyLength)
	}
	return &Signer{
		accountID: accountID,
		key:       ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]),
	}, nil
}

func (s *Signer) AccountID() string { return s.accountID }

// PublicKey returns the signing public key in NEAR's "ed25519:" base58
// form, as registered on the settlement contract.
func (s *Signer) PublicKey() string {
	pub := s.key.Public().(ed25519.PublicKey)
	return edPrefix + base58.Encode(pub)
}

// SignIntent hashes the message per NEP-413 and signs the hash,
// returning the signature in "ed25519:" base58 form.
func (s *Signer) SignIntent(message, recipient string, nonce [32]byte) (string, error) {
	hash, err := IntentHash(message, recipient, nonce)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(s.key, hash)
	return edPrefix + base58.Encode(sig), nil
}

// Sign signs arbitrary bytes with the account key. Used for NEAR
// transaction signing outside the NEP-413 path.
func (s *Signer) Sign(data []byte) []byte {
	return ed25519.Sign(s.key, data)
}

// PublicKeyBytes returns the raw 32-byte public key.
func (s *Signer) PublicKeyBytes() []byte {
	return []byte(s.key.Public().(ed25519.PublicKey))
}
