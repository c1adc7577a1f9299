package engine

import (
	"context"
	"log/slog"

	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/state"
)

// LauncherConfig drives the startup sequence for each configured symbol.
type LauncherConfig struct {
	Symbols  []string
	Leverage int
	BuySize  float64
}

// Launcher opens the initial positions when the bot starts: set leverage,
// market buy, stage the DCA ladder, register the position locally. Symbols
// already tracked (or already open on the exchange and adopted by the first
// snapshot) are skipped.
type Launcher struct {
	cfg      LauncherConfig
	store    *state.Store
	exchange domain.ExchangeClient
	ladder   *dca.Orchestrator
	logger   *slog.Logger
}

func NewLauncher(
	cfg LauncherConfig,
	store *state.Store,
	exchange domain.ExchangeClient,
	ladder *dca.Orchestrator,
	logger *slog.Logger,
) *Launcher {
	return &Launcher{
		cfg:      cfg,
		store:    store,
		exchange: exchange,
		ladder:   ladder,
		logger:   logger.With(slog.String("component", "launcher")),
	}
}

// LaunchAll runs the startup sequence for every configured symbol. A failed
// symbol is logged and skipped; the remaining symbols still launch.
func (l *Launcher) LaunchAll(ctx context.Context) {
	for _, symbol := range l.cfg.Symbols {
		if err := l.launch(ctx, symbol); err != nil {
			l.logger.ErrorContext(ctx, "launch failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (l *Launcher) launch(ctx context.Context, symbol string) error {
	if l.store.Has(symbol) {
		l.logger.InfoContext(ctx, "symbol already tracked, skipping launch",
			slog.String("symbol", symbol),
		)
		return nil
	}

	if err := l.exchange.SetLeverage(ctx, symbol, l.cfg.Leverage); err != nil {
		return err
	}

	fill, err := l.exchange.MarketOrder(ctx, symbol, domain.OrderSideBuy, l.cfg.BuySize)
	if err != nil {
		return err
	}

	handle, err := l.ladder.Place(ctx, symbol, fill.Price)
	if err != nil {
		return err
	}

	if err := l.store.Create(ctx, domain.Position{
		Symbol:          symbol,
		AverageBuyPrice: fill.Price,
		SizeInDollars:   l.cfg.BuySize,
		SizeInQuote:     fill.Size,
		PnL:             0,
		LimitOrders:     handle,
		TTPActive:       false,
	}); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "position launched",
		slog.String("symbol", symbol),
		slog.Float64("fill_price", fill.Price),
		slog.Float64("size_dollars", l.cfg.BuySize),
	)
	return nil
}
