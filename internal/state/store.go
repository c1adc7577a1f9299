// Package state holds the in-memory position store. The store is the only
// shared mutable resource the engine touches across concurrent paths; every
// mutation runs under one store-wide mutex and publishes the matching domain
// event after the change is committed.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/domain"
)

// Store is a concurrency-safe map of symbol to position record. Mutations
// never happen outside Create/Update/Delete, which guarantees the peak-PnL
// invariant: PeakPnL >= PnL after every committed update.
type Store struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	bus       *bus.Bus
	logger    *slog.Logger
}

// NewStore creates an empty Store that publishes change events on b.
func NewStore(b *bus.Bus, logger *slog.Logger) *Store {
	return &Store{
		positions: make(map[string]domain.Position),
		bus:       b,
		logger:    logger.With(slog.String("component", "position_store")),
	}
}

// Has reports whether a position is tracked for symbol.
func (s *Store) Has(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[symbol]
	return ok
}

// Get returns the tracked position for symbol. The returned value is a copy;
// mutating it does not affect the store.
func (s *Store) Get(symbol string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[symbol]
	return pos, ok
}

// List returns a copy of every tracked position.
func (s *Store) List() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	return out
}

// Create registers a new position and publishes position_opened. It fails
// with domain.ErrPositionExists when the symbol is already tracked, leaving
// the existing record untouched.
func (s *Store) Create(ctx context.Context, pos domain.Position) error {
	now := time.Now().UTC()

	s.mu.Lock()
	if _, ok := s.positions[pos.Symbol]; ok {
		s.mu.Unlock()
		return fmt.Errorf("state: create %s: %w", pos.Symbol, domain.ErrPositionExists)
	}
	if pos.PeakPnL < pos.PnL {
		pos.PeakPnL = pos.PnL
	}
	if pos.PeakPnL < 0 {
		pos.PeakPnL = 0
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = now
	}
	pos.UpdatedAt = now
	s.positions[pos.Symbol] = pos
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "position created",
		slog.String("symbol", pos.Symbol),
		slog.Float64("entry", pos.AverageBuyPrice),
	)

	s.bus.Publish(ctx, domain.EventPositionOpened, domain.PositionOpened{
		Symbol:          pos.Symbol,
		AverageBuyPrice: pos.AverageBuyPrice,
		SizeInDollars:   pos.SizeInDollars,
		SizeInQuote:     pos.SizeInQuote,
		TTPActive:       pos.TTPActive,
		At:              now,
	})
	return nil
}

// Update merges the non-nil fields of upd into the tracked position and
// publishes position_updated. Updating an untracked symbol is a no-op: no
// event, no error. When upd carries PnL without an explicit PeakPnL, the
// peak is recomputed as max(previous peak, new PnL).
func (s *Store) Update(ctx context.Context, symbol string, upd domain.PositionUpdate) {
	now := time.Now().UTC()

	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	merge(&pos, upd)
	pos.UpdatedAt = now
	s.positions[symbol] = pos
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.EventPositionUpdated, domain.PositionUpdated{
		Symbol: symbol,
		Fields: upd,
		At:     now,
	})
}

// Delete removes the tracked position and publishes position_closed carrying
// the last observed PnL. Deleting an absent symbol is a no-op.
func (s *Store) Delete(ctx context.Context, symbol string) {
	now := time.Now().UTC()

	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.positions, symbol)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "position removed",
		slog.String("symbol", symbol),
		slog.Float64("final_pnl", pos.PnL),
	)

	s.bus.Publish(ctx, domain.EventPositionClosed, domain.PositionClosed{
		Symbol:   symbol,
		FinalPnL: pos.PnL,
		At:       now,
	})
}

// merge applies the non-nil fields of upd to pos. PeakPnL is recomputed from
// a supplied PnL unless the update sets the peak explicitly (the reset path
// of a close-and-reopen does both).
func merge(pos *domain.Position, upd domain.PositionUpdate) {
	if upd.AverageBuyPrice != nil {
		pos.AverageBuyPrice = *upd.AverageBuyPrice
	}
	if upd.SizeInDollars != nil {
		pos.SizeInDollars = *upd.SizeInDollars
	}
	if upd.SizeInQuote != nil {
		pos.SizeInQuote = *upd.SizeInQuote
	}
	if upd.LimitOrders != nil {
		pos.LimitOrders = *upd.LimitOrders
	}
	if upd.TTPActive != nil {
		pos.TTPActive = *upd.TTPActive
	}
	if upd.PnL != nil {
		pos.PnL = *upd.PnL
		if pos.PeakPnL < *upd.PnL {
			pos.PeakPnL = *upd.PnL
		}
	}
	if upd.PeakPnL != nil {
		pos.PeakPnL = *upd.PeakPnL
	}
}
