package intents

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

// SolverAPI is the slice of the relay client the engine uses.
type SolverAPI interface {
	Quote(ctx context.Context, assetIn, assetOut, exactAmountIn string) ([]domain.Quote, error)
	PublishIntent(ctx context.Context, req PublishRequest) (string, error)
	PollSettlement(ctx context.Context, intentHash string) (Settlement, error)
}

// ChainCaller executes view and change calls against the underlying
// chain. Connection setup and key management are the caller's concern;
// change calls name the account whose key signs the transaction.
type ChainCaller interface {
	ViewFunction(ctx context.Context, contractID, method string, args any) (json.RawMessage, error)
	FunctionCall(ctx context.Context, signerID, receiverID, method string, args any, gas uint64, deposit *big.Int) (string, error)
}

const (
	addKeyGas = uint64(30_000_000_000_000) // 30 Tgas

	intentsContract = "intents.near"
)

// publishPauses is the per-attempt pause before each publish+poll
// cycle. Three attempts total; the values are tuned empirically against
// the relay and changing them changes observable latency.
var publishPauses = [...]time.Duration{0, 2 * time.Second, 10 * time.Second}

// Engine runs the intent swap state machine: variant resolution,
// balance aggregation, quote selection, signing, publication and
// settlement polling. One Engine serves all users; per-user signing
// state travels in the Signer argument.
type Engine struct {
	registry *Registry
	solver   SolverAPI
	chain    ChainCaller
	contract string
	logger   *slog.Logger

	// injectable for tests
	sleep    func(context.Context, time.Duration) error
	newNonce func() ([32]byte, error)
}

func NewEngine(registry *Registry, solver SolverAPI, chain ChainCaller, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		solver:   solver,
		chain:    chain,
		contract: intentsContract,
		logger:   logger.With(slog.String("component", "swap_engine")),
		sleep:    sleepCtx,
		newNonce: NewNonce,
	}
}

// WithContract overrides the settlement contract account, mainly for
// testnet deployments. An empty id keeps the default.
func (e *Engine) WithContract(id string) *Engine {
	if id != "" {
		e.contract = id
	}
	return e
}

// Swap converts req.AmountIn (human units) of TokenIn into TokenOut on
// behalf of the signer's account. Unknown symbols fail with
// ErrUnsupportedToken before any network call. When the input symbol
// has several on-network variants, other variants are first swapped
// into the target variant until it covers the requested amount.
func (e *Engine) Swap(ctx context.Context, signer *Signer, req domain.SwapRequest) (domain.SwapResult, error) {
	variantIn, err := e.registry.Resolve(req.TokenIn, req.VariantIn)
	if err != nil {
		return domain.SwapResult{}, err
	}
	variantOut, err := e.registry.Resolve(req.TokenOut, req.VariantOut)
	if err != nil {
		return domain.SwapResult{}, err
	}

	if variants := e.registry.Variants(req.TokenIn); len(variants) > 1 {
		if err := e.gatherVariants(ctx, signer, variantIn, variants, req.AmountIn); err != nil {
			return domain.SwapResult{}, err
		}
	}

	return e.swapOne(ctx, signer, variantIn, variantOut, req.AmountIn)
}

// gatherVariants is a bounded one-pass fan-in: each non-target variant
// with a balance is swapped into the target at most once, stopping as
// soon as the target balance covers the requested amount. A failed
// sub-swap contributes nothing and the pass continues.
func (e *Engine) gatherVariants(ctx context.Context, signer *Signer, target domain.TokenVariant, variants []domain.TokenVariant, amountIn string) error {
	ids := make([]string, len(variants))
	targetIdx := -1
	for i, v := range variants {
		ids[i] = v.AssetID
		if v.AssetID == target.AssetID {
			targetIdx = i
		}
	}
	if targetIdx < 0 {
		return fmt.Errorf("intents: variant %s not in %s variant list", target.AssetID, target.Symbol)
	}

	balances, err := e.balances(ctx, signer.AccountID(), ids)
	if err != nil {
		return err
	}

	need, err := target.ToSmallestUnit(amountIn)
	if err != nil {
		return err
	}
	have := new(big.Int).Set(balances[targetIdx])

	for i, v := range variants {
		if i == targetIdx || balances[i].Sign() == 0 {
			continue
		}
		if have.Cmp(need) >= 0 {
			break
		}

		res, err := e.swapOne(ctx, signer, v, target, v.FromSmallestUnit(balances[i]))
		if err != nil {
			e.logger.Warn("variant sub-swap failed",
				slog.String("from", v.AssetID),
				slog.String("to", target.AssetID),
				slog.String("error", err.Error()))
			continue
		}

		gained, err := target.ToSmallestUnit(res.AmountOut)
		if err != nil {
			return err
		}
		have.Add(have, gained)
	}
	return nil
}

func (e *Engine) swapOne(ctx context.Context, signer *Signer, in, out domain.TokenVariant, amountIn string) (domain.SwapResult, error) {
	amount, err := in.ToSmallestUnit(amountIn)
	if err != nil {
		return domain.SwapResult{}, err
	}

	// clamp to the available balance rather than failing
	balances, err := e.balances(ctx, signer.AccountID(), []string{in.AssetID})
	if err != nil {
		return domain.SwapResult{}, err
	}
	clamped := false
	if amount.Cmp(balances[0]) > 0 {
		e.logger.Warn("requested amount exceeds balance, clamping",
			slog.String("token", in.Symbol),
			slog.String("requested", amount.String()),
			slog.String("available", balances[0].String()))
		amount = balances[0]
		clamped = true
	}

	quotes, err := e.solver.Quote(ctx, in.AssetID, out.AssetID, amount.String())
	if err != nil {
		return domain.SwapResult{}, err
	}
	best, ok := BestQuote(quotes)
	if !ok {
		return domain.SwapResult{}, fmt.Errorf("intents: %s -> %s: %w", in.AssetID, out.AssetID, domain.ErrNoQuoteAvailable)
	}

	message := SwapMessage(signer.AccountID(), in.AssetID, best.AmountIn, out.AssetID, best.AmountOut, best.ExpirationTime)
	nonce, err := e.newNonce()
	if err != nil {
		return domain.SwapResult{}, err
	}
	signature, err := signer.SignIntent(message, e.contract, nonce)
	if err != nil {
		return domain.SwapResult{}, err
	}

	if err := e.ensurePublicKey(ctx, signer); err != nil {
		return domain.SwapResult{}, err
	}

	publish := PublishRequest{
		QuoteHashes: []string{best.QuoteHash},
		SignedData: SignedData{
			Payload: PublishPayload{
				Message:   message,
				Nonce:     base64.StdEncoding.EncodeToString(nonce[:]),
				Recipient: e.contract,
			},
			Standard:  "nep413",
			Signature: signature,
			PublicKey: signer.PublicKey(),
		},
	}

	for attempt, pause := range publishPauses {
		if pause > 0 {
			if err := e.sleep(ctx, pause); err != nil {
				return domain.SwapResult{}, err
			}
		}

		intentHash, err := e.solver.PublishIntent(ctx, publish)
		if err != nil {
			e.logger.Warn("publish rejected",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		settlement, err := e.solver.PollSettlement(ctx, intentHash)
		if err != nil {
			e.logger.Warn("settlement poll failed",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		if settlement.Status == SettlementSettled {
			outAmount, ok := new(big.Int).SetString(best.AmountOut, 10)
			if !ok {
				return domain.SwapResult{}, fmt.Errorf("intents: quote amount_out %q is not an integer", best.AmountOut)
			}
			e.logger.Info("swap settled",
				slog.String("tx_hash", settlement.TxHash),
				slog.String("token_in", in.Symbol),
				slog.String("token_out", out.Symbol))
			return domain.SwapResult{
				TxHash:    settlement.TxHash,
				AmountOut: out.FromSmallestUnit(outAmount),
				Clamped:   clamped,
			}, nil
		}

		e.logger.Warn("intent not settled",
			slog.Int("attempt", attempt+1),
			slog.String("status", string(settlement.Status)))
	}

	return domain.SwapResult{}, fmt.Errorf("intents: %s -> %s not settled after %d attempts: %w",
		in.AssetID, out.AssetID, len(publishPauses), domain.ErrSwapFailed)
}

// ensurePublicKey registers the signer's key on the settlement contract
// if it is not already present. The check-then-register pair is
// idempotent; registering an existing key is skipped to save a call.
func (e *Engine) ensurePublicKey(ctx context.Context, signer *Signer) error {
	raw, err := e.chain.ViewFunction(ctx, e.contract, "has_public_key", map[string]any{
		"account_id": signer.AccountID(),
		"public_key": signer.PublicKey(),
	})
	if err != nil {
		return fmt.Errorf("intents: check public key: %w", err)
	}
	var has bool
	if err := json.Unmarshal(raw, &has); err != nil {
		return fmt.Errorf("intents: decode has_public_key: %w", err)
	}
	if has {
		return nil
	}

	_, err = e.chain.FunctionCall(ctx, signer.AccountID(), e.contract, "add_public_key", map[string]any{
		"public_key": signer.PublicKey(),
	}, addKeyGas, big.NewInt(1))
	if err != nil {
		return fmt.Errorf("intents: register public key: %w", err)
	}
	e.logger.Info("public key registered", slog.String("account", signer.AccountID()))
	return nil
}

// Balances fetches smallest-unit balances for asset ids held on the
// settlement contract, in one batched call.
func (e *Engine) Balances(ctx context.Context, accountID string, assetIDs []string) ([]*big.Int, error) {
	return e.balances(ctx, accountID, assetIDs)
}

func (e *Engine) balances(ctx context.Context, accountID string, assetIDs []string) ([]*big.Int, error) {
	raw, err := e.chain.ViewFunction(ctx, e.contract, "mt_batch_balance_of", map[string]any{
		"account_id": accountID,
		"token_ids":  assetIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("intents: fetch balances: %w", err)
	}

	var amounts []string
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, fmt.Errorf("intents: decode balances: %w", err)
	}
	if len(amounts) != len(assetIDs) {
		return nil, fmt.Errorf("intents: balance count %d does not match %d asset ids", len(amounts), len(assetIDs))
	}

	out := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		if a == "" {
			out[i] = new(big.Int)
			continue
		}
		n, ok := new(big.Int).SetString(a, 10)
		if !ok {
			return nil, fmt.Errorf("intents: balance %q is not an integer", a)
		}
		out[i] = n
	}
	return out, nil
}
