package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenVariant is one tradable representation of a symbol on the
// settlement network. A symbol may have several variants (native vs.
// bridged) sharing a balance pool the swap engine may rebalance.
type TokenVariant struct {
	Symbol     string
	AssetID    string // multi-token asset id, e.g. "nep141:usdt.tether-token.near"
	Decimals   int
	Blockchain string
}

// ContractID strips the multi-token standard prefix from the asset id,
// yielding the underlying contract account.
func (v TokenVariant) ContractID() string {
	if i := strings.IndexByte(v.AssetID, ':'); i >= 0 {
		return v.AssetID[i+1:]
	}
	return v.AssetID
}

// ToSmallestUnit converts a human-readable decimal amount into the
// variant's integer smallest-unit representation. Excess fractional
// digits beyond the variant's precision are truncated.
func (v TokenVariant) ToSmallestUnit(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > v.Decimals {
		frac = frac[:v.Decimals]
	}
	frac += strings.Repeat("0", v.Decimals-len(frac))
	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("domain: amount %q is not a decimal number", amount)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("domain: amount %q is negative", amount)
	}
	return n, nil
}

// FromSmallestUnit converts an integer smallest-unit amount back to a
// human-readable decimal string, trimming trailing zeros.
func (v TokenVariant) FromSmallestUnit(n *big.Int) string {
	s := n.String()
	if v.Decimals == 0 {
		return s
	}
	if len(s) <= v.Decimals {
		s = strings.Repeat("0", v.Decimals-len(s)+1) + s
	}
	cut := len(s) - v.Decimals
	whole, frac := s[:cut], strings.TrimRight(s[cut:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
