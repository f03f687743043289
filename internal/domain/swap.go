package domain

// Quote is a priced offer from a solver for converting an exact amount
// of one asset into another. Amounts are integer smallest-unit strings.
type Quote struct {
	QuoteHash      string
	DefuseAssetIn  string
	DefuseAssetOut string
	AmountIn       string
	AmountOut      string
	ExpirationTime string
}

// SwapRequest asks the engine to convert AmountIn (human units) of
// TokenIn into TokenOut on behalf of the signing account. VariantIn and
// VariantOut optionally pin a specific asset id for a symbol.
type SwapRequest struct {
	TokenIn    string
	TokenOut   string
	AmountIn   string
	VariantIn  string
	VariantOut string
}

// SwapResult reports a settled swap. AmountOut is converted to the
// output token's human-readable units; the wire always used integers.
type SwapResult struct {
	TxHash    string
	AmountOut string
	Clamped   bool // requested amount exceeded balance and was reduced
}
