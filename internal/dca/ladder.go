// Package dca owns the shape of the averaging-down ladder: a set of limit
// buy orders staged at successive percentage deviations below a reference
// price, each sized by a geometric progression. Actual placement is
// delegated to the exchange client; the engine only ever sees the opaque
// handle that comes back.
package dca

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/mawtrade/mawbot/internal/domain"
)

// Config describes one ladder: the dollar size of the first rung, the
// multiplier applied to each subsequent rung, and the ordered percentage
// deviations below the reference price.
type Config struct {
	BaseSize   float64
	Multiplier float64
	Deviations []float64
}

// Rung is one planned ladder order before placement.
type Rung struct {
	Price     float64
	Size      float64
	Deviation float64
}

// Plan computes the concrete rungs for a ladder anchored at referencePrice.
// Rung i sits cfg.Deviations[i] percent below the reference and is sized
// cfg.BaseSize * cfg.Multiplier^i.
func Plan(referencePrice float64, cfg Config) []Rung {
	rungs := make([]Rung, 0, len(cfg.Deviations))
	for i, dev := range cfg.Deviations {
		rungs = append(rungs, Rung{
			Price:     referencePrice * (1 - dev/100),
			Size:      cfg.BaseSize * math.Pow(cfg.Multiplier, float64(i)),
			Deviation: dev,
		})
	}
	return rungs
}

// Orchestrator builds and cancels the DCA ladder attributed to a position.
type Orchestrator struct {
	client domain.ExchangeClient
	cfg    Config
	logger *slog.Logger
}

// New creates an Orchestrator that places ladders through client.
func New(client domain.ExchangeClient, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "dca")),
	}
}

// Place stages a fresh ladder below referencePrice and returns the handle
// the exchange client assigned to it.
func (o *Orchestrator) Place(ctx context.Context, symbol string, referencePrice float64) (domain.LadderHandle, error) {
	handle, err := o.client.CreateDcaLadder(ctx, symbol, referencePrice, o.cfg.BaseSize, o.cfg.Multiplier, o.cfg.Deviations)
	if err != nil {
		return nil, fmt.Errorf("dca: place ladder for %s: %w", symbol, err)
	}
	o.logger.InfoContext(ctx, "ladder placed",
		slog.String("symbol", symbol),
		slog.Float64("reference_price", referencePrice),
		slog.Int("rungs", len(handle)),
	)
	return handle, nil
}

// Cancel revokes a previously placed ladder. The handle is passed back to
// the exchange client unmodified.
func (o *Orchestrator) Cancel(ctx context.Context, symbol string, handle domain.LadderHandle) error {
	if len(handle) == 0 {
		return nil
	}
	if err := o.client.CancelLadder(ctx, symbol, o.cfg.Deviations, handle); err != nil {
		return fmt.Errorf("dca: cancel ladder for %s: %w", symbol, err)
	}
	o.logger.InfoContext(ctx, "ladder cancelled",
		slog.String("symbol", symbol),
		slog.Int("rungs", len(handle)),
	)
	return nil
}
