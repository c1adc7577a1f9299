// Package engine implements the position lifecycle: adopting positions the
// exchange reports, arming trailing take-profit once unrealized profit
// crosses the configured threshold, and closing-and-reopening a position
// when profit retraces from its peak.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/state"
)

// Config carries the strategy thresholds the processor applies.
type Config struct {
	// TakeProfit is the unrealized profit (percent of position value) at
	// which trailing tracking arms.
	TakeProfit float64

	// TrailingRetrace is how far profit may fall from its peak (percentage
	// points) before the position is closed and reopened.
	TrailingRetrace float64

	// BuySize is the dollar size of the market order placed on reopen.
	BuySize float64

	// ActionTimeout bounds each close-and-reopen sequence so a hung remote
	// call cannot block a symbol's future updates indefinitely.
	ActionTimeout time.Duration
}

// Processor applies the per-symbol decision rules to each account snapshot
// pushed by the exchange. Rules are evaluated in priority order and at most
// one terminal action fires per symbol per snapshot.
type Processor struct {
	cfg      Config
	store    *state.Store
	exchange domain.ExchangeClient
	ladder   *dca.Orchestrator
	bus      *bus.Bus
	cycles   domain.CycleStore // optional; nil disables the history journal
	logger   *slog.Logger

	mu       sync.Mutex
	removals map[string]bool
}

// NewProcessor creates a Processor. cycles may be nil when no history
// persistence is configured.
func NewProcessor(
	cfg Config,
	store *state.Store,
	exchange domain.ExchangeClient,
	ladder *dca.Orchestrator,
	b *bus.Bus,
	cycles domain.CycleStore,
	logger *slog.Logger,
) *Processor {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 30 * time.Second
	}
	return &Processor{
		cfg:      cfg,
		store:    store,
		exchange: exchange,
		ladder:   ladder,
		bus:      b,
		cycles:   cycles,
		logger:   logger.With(slog.String("component", "processor")),
		removals: make(map[string]bool),
	}
}

// MarkForRemoval flags a symbol so that its next trailing-stop trigger
// deletes the position instead of reopening it.
func (p *Processor) MarkForRemoval(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removals[symbol] = true
}

func (p *Processor) pendingRemoval(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removals[symbol]
}

// ProcessSnapshot walks every position entry of one account snapshot and
// applies the decision rules. Entries are handled sequentially; one snapshot
// is in flight at a time per connection.
func (p *Processor) ProcessSnapshot(ctx context.Context, snap domain.AccountSnapshot) {
	for _, entry := range snap.Positions {
		p.processEntry(ctx, entry)
	}
}

func (p *Processor) processEntry(ctx context.Context, entry domain.AssetPosition) {
	pnlPercent := entry.PnLPercent()

	pos, tracked := p.store.Get(entry.Coin)

	// Rule 1: a position we do not track was opened outside the engine
	// (manually, or by a previous run). Adopt it rather than ignore it.
	if !tracked {
		p.adopt(ctx, entry, pnlPercent)
		return
	}

	// Rule 2: profit crossed the take-profit threshold; arm trailing
	// tracking exactly once per excursion above it.
	if pnlPercent >= p.cfg.TakeProfit && !pos.TTPActive {
		p.store.Update(ctx, entry.Coin, domain.PositionUpdate{
			AverageBuyPrice: domain.Float64Ptr(entry.EntryPrice),
			SizeInDollars:   domain.Float64Ptr(entry.PositionValue),
			SizeInQuote:     domain.Float64Ptr(entry.Size),
			PnL:             domain.Float64Ptr(pnlPercent),
			TTPActive:       domain.BoolPtr(true),
		})
		p.logger.InfoContext(ctx, "trailing take-profit armed",
			slog.String("symbol", entry.Coin),
			slog.Float64("pnl_percent", pnlPercent),
		)
		return
	}

	// Rule 3: armed and retraced from the peak by at least the configured
	// amount; exit and restart the cycle.
	if pos.TTPActive && pos.PeakPnL-pnlPercent >= p.cfg.TrailingRetrace {
		if err := p.closeAndReopen(ctx, entry.Coin, pnlPercent); err != nil {
			p.logger.ErrorContext(ctx, "close-and-reopen failed",
				slog.String("symbol", entry.Coin),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	// Rule 4: routine refresh. An armed TTP flag is left untouched so a
	// routine pass can never disarm trailing.
	p.store.Update(ctx, entry.Coin, domain.PositionUpdate{
		AverageBuyPrice: domain.Float64Ptr(entry.EntryPrice),
		SizeInDollars:   domain.Float64Ptr(entry.PositionValue),
		SizeInQuote:     domain.Float64Ptr(entry.Size),
		PnL:             domain.Float64Ptr(pnlPercent),
	})
}

// adopt registers an externally-created position: stage a ladder under its
// entry price, then create the local record. The store publishes the opened
// event.
func (p *Processor) adopt(ctx context.Context, entry domain.AssetPosition, pnlPercent float64) {
	p.logger.WarnContext(ctx, "untracked open position found, adopting",
		slog.String("symbol", entry.Coin),
		slog.Float64("entry_price", entry.EntryPrice),
	)

	handle, err := p.ladder.Place(ctx, entry.Coin, entry.EntryPrice)
	if err != nil {
		p.logger.ErrorContext(ctx, "adopt: ladder placement failed",
			slog.String("symbol", entry.Coin),
			slog.String("error", err.Error()),
		)
		return
	}

	err = p.store.Create(ctx, domain.Position{
		Symbol:          entry.Coin,
		AverageBuyPrice: entry.EntryPrice,
		SizeInDollars:   entry.PositionValue,
		SizeInQuote:     entry.Size,
		PnL:             pnlPercent,
		LimitOrders:     handle,
		TTPActive:       false,
	})
	if err != nil {
		// processEntry checked tracking state first, so reaching this means
		// two paths raced on the same symbol. Surface it loudly.
		if errors.Is(err, domain.ErrPositionExists) {
			p.logger.ErrorContext(ctx, "adopt: position appeared concurrently, likely a race",
				slog.String("symbol", entry.Coin),
			)
			return
		}
		p.logger.ErrorContext(ctx, "adopt: create failed",
			slog.String("symbol", entry.Coin),
			slog.String("error", err.Error()),
		)
	}
}

// closeAndReopen performs the multi-step exit-and-restart sequence. Any
// remote failure aborts the sequence for this symbol on this pass; local
// state is not rolled back and the next snapshot re-derives intent from
// exchange truth.
func (p *Processor) closeAndReopen(ctx context.Context, symbol string, pnlPercent float64) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ActionTimeout)
	defer cancel()

	pos, ok := p.store.Get(symbol)
	if !ok {
		return fmt.Errorf("engine: close %s: %w", symbol, domain.ErrNotFound)
	}

	p.logger.InfoContext(ctx, "closing profitable position",
		slog.String("symbol", symbol),
		slog.Float64("pnl_percent", pnlPercent),
		slog.Float64("peak_pnl", pos.PeakPnL),
	)

	if err := p.exchange.MarketClose(ctx, symbol, domain.OrderSideSell); err != nil {
		return fmt.Errorf("engine: market close %s: %w", symbol, err)
	}

	if err := p.ladder.Cancel(ctx, symbol, pos.LimitOrders); err != nil {
		// The position is already closed remotely; the stale ladder stays
		// resting on the exchange until cancelled out of band.
		return fmt.Errorf("engine: cancel stale ladder %s: %w", symbol, err)
	}

	p.recordCycle(ctx, pos, pnlPercent)

	if p.pendingRemoval(symbol) {
		// The store's delete publish is the single close notification on
		// this branch.
		p.store.Delete(ctx, symbol)
		p.logger.InfoContext(ctx, "position removed from tracking",
			slog.String("symbol", symbol),
		)
		return nil
	}

	p.bus.Publish(ctx, domain.EventPositionClosed, domain.PositionClosed{
		Symbol:   symbol,
		FinalPnL: pnlPercent,
		At:       time.Now().UTC(),
	})

	fill, err := p.exchange.MarketOrder(ctx, symbol, domain.OrderSideBuy, p.cfg.BuySize)
	if err != nil {
		return fmt.Errorf("engine: reopen market order %s: %w", symbol, err)
	}

	handle, err := p.ladder.Place(ctx, symbol, fill.Price)
	if err != nil {
		return fmt.Errorf("engine: reopen ladder %s: %w", symbol, err)
	}

	p.store.Update(ctx, symbol, domain.PositionUpdate{
		AverageBuyPrice: domain.Float64Ptr(fill.Price),
		SizeInDollars:   domain.Float64Ptr(p.cfg.BuySize),
		SizeInQuote:     domain.Float64Ptr(fill.Size),
		PnL:             domain.Float64Ptr(0),
		PeakPnL:         domain.Float64Ptr(0),
		LimitOrders:     &handle,
		TTPActive:       domain.BoolPtr(false),
	})

	p.bus.Publish(ctx, domain.EventPositionOpened, domain.PositionOpened{
		Symbol:          symbol,
		AverageBuyPrice: fill.Price,
		SizeInDollars:   p.cfg.BuySize,
		SizeInQuote:     fill.Size,
		TTPActive:       false,
		At:              time.Now().UTC(),
	})

	p.logger.InfoContext(ctx, "position reopened",
		slog.String("symbol", symbol),
		slog.Float64("fill_price", fill.Price),
	)
	return nil
}

// recordCycle journals the completed round trip. Persistence failures are
// logged, never fatal to the trading sequence.
func (p *Processor) recordCycle(ctx context.Context, pos domain.Position, finalPnL float64) {
	if p.cycles == nil {
		return
	}
	cycle := domain.TradeCycle{
		ID:            uuid.NewString(),
		Symbol:        pos.Symbol,
		EntryPrice:    pos.AverageBuyPrice,
		SizeInDollars: pos.SizeInDollars,
		FinalPnL:      finalPnL,
		PeakPnL:       pos.PeakPnL,
		OpenedAt:      pos.OpenedAt,
		ClosedAt:      time.Now().UTC(),
	}
	if err := p.cycles.Insert(ctx, cycle); err != nil {
		p.logger.WarnContext(ctx, "cycle journal insert failed",
			slog.String("symbol", pos.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
