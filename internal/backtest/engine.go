package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"vela/internal/config"
	"vela/internal/domain"
	"vela/internal/strategy"
)

// Config holds the execution and accounting parameters of one run.
type Config struct {
	InitialCash     float64
	CommissionRate  float64
	CommissionFixed float64
	SlippagePct     float64
	LimitExpiryBars int
	AllowMargin     bool
	MaxPositionPct  float64
	RiskFreeRate    float64
	BarsPerYear     int
}

// ConfigFromApp maps the application-level backtest settings into an
// engine Config.
func ConfigFromApp(bc config.BacktestConfig) Config {
	limitExpiry := 1
	if bc.LimitExpiryBars != nil {
		limitExpiry = *bc.LimitExpiryBars
	}
	return Config{
		InitialCash:     bc.InitialCash,
		CommissionRate:  bc.CommissionRate,
		CommissionFixed: bc.CommissionFixed,
		SlippagePct:     bc.SlippagePct,
		LimitExpiryBars: limitExpiry,
		AllowMargin:     bc.AllowMargin,
		MaxPositionPct:  bc.MaxPositionPct,
		RiskFreeRate:    bc.RiskFreeRate,
		BarsPerYear:     bc.BarsPerYear,
	}
}

func (c Config) validate() error {
	if c.InitialCash <= 0 {
		return fmt.Errorf("%w: initial cash must be positive, got %v", domain.ErrEngine, c.InitialCash)
	}
	if c.CommissionRate < 0 || c.CommissionFixed < 0 {
		return fmt.Errorf("%w: commissions must be non-negative", domain.ErrEngine)
	}
	if c.SlippagePct < 0 || c.SlippagePct >= 1 {
		return fmt.Errorf("%w: slippage must be in [0, 1), got %v", domain.ErrEngine, c.SlippagePct)
	}
	if c.LimitExpiryBars < 0 {
		return fmt.Errorf("%w: limit expiry bars must be non-negative, got %d", domain.ErrEngine, c.LimitExpiryBars)
	}
	if c.BarsPerYear <= 0 {
		return fmt.Errorf("%w: bars per year must be positive, got %d", domain.ErrEngine, c.BarsPerYear)
	}
	return nil
}

// Engine runs one strategy over one dataset and produces a RunResult. An
// Engine is cheap to construct and single-use per Run call: each Run gets a
// fresh ledger and simulator, so two runs with identical inputs produce
// identical curves, trades and metrics.
type Engine struct {
	cfg   Config
	strat strategy.Strategy
	sizer Sizer
	log   *slog.Logger
}

// New creates an Engine. A nil sizer defaults to a FractionSizer using the
// configured max position fraction; a nil logger defaults to slog.Default.
func New(cfg Config, strat strategy.Strategy, sizer Sizer, log *slog.Logger) *Engine {
	if sizer == nil {
		frac := cfg.MaxPositionPct
		if frac <= 0 {
			frac = 0.95
		}
		sizer = FractionSizer{Fraction: frac}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, strat: strat, sizer: sizer, log: log}
}

// Run replays the dataset bar by bar through the event pipeline and returns
// the completed result. Orders generated on a bar are filled against later
// bars only. A fill the ledger cannot afford is logged and dropped without
// aborting the run; strategy errors abort the run wrapped in
// domain.ErrStrategy.
func (e *Engine) Run(ctx context.Context, data map[string][]domain.Bar) (*domain.RunResult, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}
	if e.strat == nil {
		return nil, fmt.Errorf("%w: no strategy configured", domain.ErrEngine)
	}

	stream, err := NewStream(data)
	if err != nil {
		return nil, err
	}
	if err := e.strat.Init(ctx); err != nil {
		return nil, fmt.Errorf("%w: init %q: %v", domain.ErrStrategy, e.strat.Name(), err)
	}

	ledger := NewLedger(e.cfg.InitialCash, e.cfg.AllowMargin)
	sim := NewSimulator(e.cfg, e.log)
	queue := &eventQueue{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run aborted: %w", err)
		}
		bar, ok := stream.Next()
		if !ok {
			break
		}
		queue.Push(domain.MarketEvent{Bar: bar})

		for {
			ev, ok := queue.Pop()
			if !ok {
				break
			}
			if err := e.handle(ctx, ev, stream, sim, ledger, queue); err != nil {
				return nil, err
			}
		}

		// One snapshot per timestamp: wait until every bar sharing this
		// timestamp has been processed so the curve stays strictly
		// increasing in time.
		if next, more := stream.PeekTime(); !more || next.After(bar.Timestamp) {
			ledger.TakeSnapshot(bar.Timestamp)
		}
	}

	if dropped := sim.DropPending(); dropped > 0 {
		e.log.Info("dropped unfilled orders at end of data", "count", dropped)
	}

	curve := ledger.Curve()
	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: run produced no equity curve", domain.ErrEngine)
	}
	ledger.CloseAll(curve[len(curve)-1].Timestamp)

	metrics, err := ComputeMetrics(curve, ledger.Trades(), e.cfg.RiskFreeRate, e.cfg.BarsPerYear)
	if err != nil {
		return nil, err
	}

	return &domain.RunResult{
		ID:          uuid.NewString(),
		Strategy:    e.strat.Name(),
		Symbols:     stream.Symbols(),
		Start:       curve[0].Timestamp,
		End:         curve[len(curve)-1].Timestamp,
		InitialCash: e.cfg.InitialCash,
		FinalEquity: ledger.Equity(),
		Curve:       curve,
		Trades:      ledger.Trades(),
		Metrics:     metrics,
	}, nil
}

// handle dispatches one event through the pipeline.
func (e *Engine) handle(ctx context.Context, ev domain.Event, stream *Stream, sim *Simulator, ledger *Ledger, queue *eventQueue) error {
	switch ev := ev.(type) {
	case domain.MarketEvent:
		for _, fill := range sim.OnBar(ev.Bar) {
			queue.Push(fill)
		}
		ledger.MarkPrice(ev.Bar)

		sig, err := e.strat.OnBar(ctx, ev.Bar.Symbol, stream.History(ev.Bar.Symbol))
		if err != nil {
			return fmt.Errorf("%w: %q on %s at %s: %v",
				domain.ErrStrategy, e.strat.Name(), ev.Bar.Symbol, ev.Bar.Timestamp.Format("2006-01-02"), err)
		}
		if sig != nil {
			queue.Push(*sig)
		}

	case domain.SignalEvent:
		if order, ok := e.translate(ev, ledger); ok {
			queue.Push(order)
		}

	case domain.OrderEvent:
		sim.Submit(ev)

	case domain.FillEvent:
		if err := ledger.ApplyFill(ev); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				e.log.Warn("fill rejected", "symbol", ev.Symbol, "error", err)
				return nil
			}
			return err
		}
	}
	return nil
}

// translate turns a signal into a market order, sizing entries through the
// Sizer and converting exits into an unwind of the full open position.
// Signals that size to zero, exits with no position, and entries that would
// stack onto an existing same-direction position are all dropped here.
func (e *Engine) translate(sig domain.SignalEvent, ledger *Ledger) (domain.OrderEvent, bool) {
	pos, hasPos := ledger.Position(sig.Symbol)

	if sig.Direction == domain.DirectionExit {
		if !hasPos || pos.Quantity == 0 {
			return domain.OrderEvent{}, false
		}
		dir := domain.DirectionShort
		if pos.Quantity < 0 {
			dir = domain.DirectionLong
		}
		return domain.OrderEvent{
			Symbol:    sig.Symbol,
			Timestamp: sig.Timestamp,
			Type:      domain.OrderTypeMarket,
			Direction: dir,
			Quantity:  math.Abs(pos.Quantity),
		}, true
	}

	if hasPos && pos.Quantity*sig.Direction.Sign() > 0 {
		return domain.OrderEvent{}, false
	}

	price, ok := ledger.LastPrice(sig.Symbol)
	if !ok || price <= 0 {
		return domain.OrderEvent{}, false
	}
	qty := e.sizer.Size(sig, price, ledger.Cash(), ledger.Equity())
	if qty <= 0 {
		return domain.OrderEvent{}, false
	}
	// Opposite-direction entries also unwind the existing position so the
	// resulting fill flips in one step.
	if hasPos {
		qty += math.Abs(pos.Quantity)
	}
	return domain.OrderEvent{
		Symbol:    sig.Symbol,
		Timestamp: sig.Timestamp,
		Type:      domain.OrderTypeMarket,
		Direction: sig.Direction,
		Quantity:  qty,
	}, true
}
