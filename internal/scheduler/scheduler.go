// Package scheduler drives the conditional-order loop: on a fixed
// interval it expires stale orders, takes one market snapshot, walks
// every open order and fires the swap engine for those whose conditions
// all hold.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/condition"
	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/intents"
	"github.com/cuongdcdev/shade-trader/internal/metrics"
)

// DefaultInterval is the tick period between order-check passes.
const DefaultInterval = 30 * time.Second

// tickLockKey guards against two replicas processing the same orders.
const tickLockKey = "scheduler:tick"

// Swapper executes one intent swap on behalf of a signing account.
type Swapper interface {
	Swap(ctx context.Context, signer *intents.Signer, req domain.SwapRequest) (domain.SwapResult, error)
}

// Notifier receives one dispatch per order outcome.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config carries scheduler tunables.
type Config struct {
	Interval  time.Duration
	BaseToken string // quote side of buy/sell actions, e.g. "USDC"
	LockTTL   time.Duration
}

// Status is a point-in-time view of the scheduler for the API surface.
type Status struct {
	Running    bool       `json:"running"`
	Interval   string     `json:"interval"`
	LastTickAt *time.Time `json:"last_tick_at,omitempty"`
	TickCount  uint64     `json:"tick_count"`
}

// Scheduler owns the order-check loop. One Scheduler runs per process;
// Start and Stop are idempotent and safe for concurrent use. Ticks never
// overlap: the loop runs them on a single goroutine and a per-Scheduler
// lock drops a manual Tick that arrives mid-pass. Orders within a tick
// are processed sequentially because swaps share per-account signing
// state.
type Scheduler struct {
	cfg      Config
	orders   domain.OrderStore
	users    domain.UserStore
	market   domain.MarketDataProvider
	swapper  Swapper
	notifier Notifier
	locks    domain.LockManager // optional, nil disables cross-replica locking
	logger   *slog.Logger

	now func() time.Time

	tickMu     sync.Mutex // held for the duration of a tick
	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	lastTickAt *time.Time
	tickCount  uint64
}

func New(
	cfg Config,
	orders domain.OrderStore,
	users domain.UserStore,
	market domain.MarketDataProvider,
	swapper Swapper,
	notifier Notifier,
	locks domain.LockManager,
	logger *slog.Logger,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BaseToken == "" {
		cfg.BaseToken = "USDC"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	return &Scheduler{
		cfg:      cfg,
		orders:   orders,
		users:    users,
		market:   market,
		swapper:  swapper,
		notifier: notifier,
		locks:    locks,
		logger:   logger.With(slog.String("component", "scheduler")),
		now:      time.Now,
	}
}

// Start launches the loop. It reports whether this call started it; a
// second Start while running is a no-op.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Debug("start ignored, already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	metrics.SchedulerRunning.Set(1)
	s.logger.Info("scheduler started", slog.Duration("interval", s.cfg.Interval))
	return true
}

// Stop halts scheduling of future ticks and waits for an in-flight tick
// to finish. An already-dispatched swap is left to settle or time out;
// Stop while stopped is a no-op.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		s.logger.Debug("stop ignored, not running")
		return false
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	metrics.SchedulerRunning.Set(0)
	s.logger.Info("scheduler stopped")
	return true
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status returns the current lifecycle state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.cancel != nil,
		Interval:   s.cfg.Interval.String(),
		LastTickAt: s.lastTickAt,
		TickCount:  s.tickCount,
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// first pass immediately, then on the ticker
	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one order-check pass. It is exported so the API surface can
// trigger an immediate check. A tick that arrives while another is in
// flight is skipped, so a manual trigger never runs an order through the
// swap engine twice at once; the optional distributed lock extends the
// same guarantee across replicas.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.logger.Debug("tick skipped, another tick in flight")
		return
	}
	defer s.tickMu.Unlock()

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, tickLockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Debug("tick skipped, lock held elsewhere")
			} else {
				s.logger.Warn("tick lock acquire failed", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	now := s.now()

	if expired, err := s.orders.ExpireDue(ctx, now); err != nil {
		s.logger.Warn("expiring orders failed", slog.String("error", err.Error()))
	} else if expired > 0 {
		metrics.OrdersExpired.Add(float64(expired))
		s.logger.Info("orders expired", slog.Int64("count", expired))
	}

	open, err := s.orders.ListOpen(ctx)
	if err != nil {
		s.logger.Error("listing open orders failed", slog.String("error", err.Error()))
		return
	}

	s.finishTick(now)
	if len(open) == 0 {
		return
	}

	snap, err := s.market.Snapshot(ctx, snapshotSymbols(open))
	if err != nil {
		s.logger.Error("market snapshot failed", slog.String("error", err.Error()))
		return
	}

	for _, order := range open {
		if ctx.Err() != nil {
			return
		}
		s.processOrder(ctx, order, snap)
	}
}

func (s *Scheduler) finishTick(now time.Time) {
	s.mu.Lock()
	s.lastTickAt = &now
	s.tickCount++
	s.mu.Unlock()
	metrics.SchedulerTicks.Inc()
}

// processOrder evaluates and possibly executes one order. Failures are
// isolated: a panic or error here never aborts the rest of the tick.
func (s *Scheduler) processOrder(ctx context.Context, order domain.Order, snap domain.MarketSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing order",
				slog.String("order_id", order.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	metrics.OrdersEvaluated.Inc()
	if !condition.EvaluateAll(order.Conditions, snap) {
		return
	}

	logger := s.logger.With(slog.String("order_id", order.ID), slog.String("user", order.UserAddress))
	logger.Info("conditions met, executing order",
		slog.String("action", string(order.Action.Type)),
		slog.String("token", order.Action.Token),
		slog.String("amount", order.Action.Amount))

	user, err := s.users.GetByAddress(ctx, order.UserAddress)
	if err != nil {
		logger.Error("loading user failed", slog.String("error", err.Error()))
		return
	}

	signer, err := intents.NewSigner(user.Address, user.PrivateKey)
	if err != nil {
		// a malformed key never fixes itself, so the order is failed
		// rather than retried every tick
		logger.Error("signer setup failed", slog.String("error", err.Error()))
		s.failOrder(ctx, order, fmt.Sprintf("signer setup: %v", err), "invalid_key")
		return
	}

	req := swapRequest(order, s.cfg.BaseToken)
	started := s.now()
	result, err := s.swapper.Swap(ctx, signer, req)
	metrics.SwapDuration.Observe(s.now().Sub(started).Seconds())

	switch {
	case err == nil:
		if err := s.orders.MarkExecuted(ctx, order.ID, result.TxHash, result.AmountOut, s.now()); err != nil {
			logger.Error("marking order executed failed", slog.String("error", err.Error()))
		}
		metrics.OrdersExecuted.Inc()
		logger.Info("order executed",
			slog.String("tx_hash", result.TxHash),
			slog.String("amount_out", result.AmountOut))
		s.notifyOutcome(ctx, order, "order_executed", "Order Executed",
			fmt.Sprintf("Order %s: %s %s %s filled, received %s %s.\nTx: %s",
				order.ID, order.Action.Type, order.Action.Amount, order.Action.Token,
				result.AmountOut, req.TokenOut, result.TxHash))

	case errors.Is(err, domain.ErrUnsupportedToken),
		errors.Is(err, domain.ErrNoQuoteAvailable),
		errors.Is(err, domain.ErrSwapFailed),
		errors.Is(err, domain.ErrInvalidKeyLength):
		logger.Error("swap failed", slog.String("error", err.Error()))
		s.failOrder(ctx, order, err.Error(), reasonClass(err))

	default:
		// transient RPC trouble: leave the order open for the next tick
		logger.Warn("swap attempt aborted for this tick", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) failOrder(ctx context.Context, order domain.Order, reason, class string) {
	if err := s.orders.MarkFailed(ctx, order.ID, reason, s.now()); err != nil {
		s.logger.Error("marking order failed errored",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
	}
	metrics.OrdersFailed.WithLabelValues(class).Inc()
	s.notifyOutcome(ctx, order, "order_failed", "Order Failed",
		fmt.Sprintf("Order %s (%s %s %s) failed: %s",
			order.ID, order.Action.Type, order.Action.Amount, order.Action.Token, reason))
}

func (s *Scheduler) notifyOutcome(ctx context.Context, order domain.Order, event, title, message string) {
	if s.notifier == nil || !order.Settings.NotifyOnExecute {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification dispatch failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
	}
}

// reasonClass buckets terminal swap errors for the failure counter.
func reasonClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedToken):
		return "unsupported_token"
	case errors.Is(err, domain.ErrNoQuoteAvailable):
		return "no_quote"
	case errors.Is(err, domain.ErrInvalidKeyLength):
		return "invalid_key"
	default:
		return "not_settled"
	}
}

// swapRequest maps a buy/sell action onto the base pair: buys spend the
// base token, sells spend the order's token.
func swapRequest(order domain.Order, baseToken string) domain.SwapRequest {
	if order.Action.Type == domain.ActionBuy {
		return domain.SwapRequest{
			TokenIn:  baseToken,
			TokenOut: order.Action.Token,
			AmountIn: order.Action.Amount,
		}
	}
	return domain.SwapRequest{
		TokenIn:  order.Action.Token,
		TokenOut: baseToken,
		AmountIn: order.Action.Amount,
	}
}

// snapshotSymbols collects every symbol the tick needs market data for.
func snapshotSymbols(orders []domain.Order) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		if sym != "" && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for _, o := range orders {
		for _, c := range o.Conditions {
			add(c.Token)
		}
		add(o.Action.Token)
	}
	return out
}
