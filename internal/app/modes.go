package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/mawtrade/mawbot/internal/blob/s3"
	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/crypto"
	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/engine"
	"github.com/mawtrade/mawbot/internal/feed"
	"github.com/mawtrade/mawbot/internal/notify"
	"github.com/mawtrade/mawbot/internal/platform/hyperliquid"
	"github.com/mawtrade/mawbot/internal/server"
	"github.com/mawtrade/mawbot/internal/server/handler"
	"github.com/mawtrade/mawbot/internal/service"
	"github.com/mawtrade/mawbot/internal/state"
)

// archiveInterval is how often the cycle archiver sweeps expired history.
const archiveInterval = 24 * time.Hour

// TradeMode runs the full trading engine: launch the configured symbols,
// stream account snapshots, and apply the lifecycle rules to each one.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	b := bus.New(a.logger)
	store := state.NewStore(b, a.logger)
	notify.NewPositionListener(b, deps.Notifier)
	service.NewMirror(b, store, deps.Cache, deps.Signals, a.logger)

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("trade mode: load key: %w", err)
	}
	signer, err := crypto.NewSigner(key, a.cfg.Hyperliquid.Mainnet)
	if err != nil {
		return fmt.Errorf("trade mode: create signer: %w", err)
	}

	exchange := hyperliquid.NewClient(a.cfg.Hyperliquid.APIURL, signer, a.logger)
	ladder := dca.New(exchange, dca.Config{
		BaseSize:   a.cfg.Strategy.DcaBaseSize,
		Multiplier: a.cfg.Strategy.DcaMultiplier,
		Deviations: a.cfg.Strategy.DcaDeviations,
	}, a.logger)

	proc := engine.NewProcessor(engine.Config{
		TakeProfit:      a.cfg.Strategy.TakeProfit,
		TrailingRetrace: a.cfg.Strategy.TrailingRetrace,
		BuySize:         a.cfg.Strategy.BuySize,
		ActionTimeout:   a.cfg.Strategy.ActionTimeout.Duration,
	}, store, exchange, ladder, b, deps.Cycles, a.logger)

	launcher := engine.NewLauncher(engine.LauncherConfig{
		Symbols:  a.cfg.Strategy.Symbols,
		Leverage: a.cfg.Strategy.Leverage,
		BuySize:  a.cfg.Strategy.BuySize,
	}, store, exchange, ladder, a.logger)
	launcher.LaunchAll(ctx)

	accountFeed := feed.New(a.feedConfig(signer.Address().Hex()), proc.ProcessSnapshot, a.logger)
	g.Go(func() error {
		return accountFeed.Run(ctx)
	})

	if deps.BlobWriter != nil {
		journal := service.NewEventJournal(b, deps.BlobWriter, time.Minute, a.logger)
		g.Go(func() error {
			return journal.Run(ctx)
		})
	}

	if deps.BlobWriter != nil && deps.Cycles != nil {
		retention := time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour
		archiver := s3blob.NewCycleArchiver(deps.BlobWriter, deps.Cycles, retention, a.logger)
		g.Go(func() error {
			return archiver.RunPeriodic(ctx, archiveInterval)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, store, proc)
	}

	return g.Wait()
}

// MonitorMode streams account snapshots and mirrors them into the local
// store and caches without placing any orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	b := bus.New(a.logger)
	store := state.NewStore(b, a.logger)
	notify.NewPositionListener(b, deps.Notifier)
	service.NewMirror(b, store, deps.Cache, deps.Signals, a.logger)

	user := a.cfg.Wallet.WatchAddress
	if user == "" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    a.cfg.Wallet.PrivateKey,
			EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      a.cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fmt.Errorf("monitor mode: no watch_address and no key: %w", err)
		}
		signer, err := crypto.NewSigner(key, a.cfg.Hyperliquid.Mainnet)
		if err != nil {
			return fmt.Errorf("monitor mode: create signer: %w", err)
		}
		user = signer.Address().Hex()
	}

	if deps.BlobWriter != nil {
		journal := service.NewEventJournal(b, deps.BlobWriter, time.Minute, a.logger)
		g.Go(func() error {
			return journal.Run(ctx)
		})
	}

	accountFeed := feed.New(a.feedConfig(user), mirrorHandler(store), a.logger)
	g.Go(func() error {
		return accountFeed.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, store, nil)
	}

	return g.Wait()
}

func (a *App) feedConfig(user string) feed.Config {
	return feed.Config{
		WSURL:             a.cfg.Hyperliquid.WSURL,
		User:              user,
		RetryDelay:        a.cfg.Feed.RetryDelay.Duration,
		MaxRetries:        a.cfg.Feed.MaxRetries,
		LongRetryDelay:    a.cfg.Feed.LongRetryDelay.Duration,
		HeartbeatInterval: a.cfg.Feed.HeartbeatInterval.Duration,
	}
}

// mirrorHandler reflects each snapshot into the store verbatim: new entries
// are created, known entries get their PnL refreshed, vanished entries are
// deleted. No orders are placed.
func mirrorHandler(store *state.Store) feed.SnapshotHandler {
	return func(ctx context.Context, snap domain.AccountSnapshot) {
		seen := make(map[string]bool, len(snap.Positions))
		for _, entry := range snap.Positions {
			seen[entry.Coin] = true
			pnl := entry.PnLPercent()
			if !store.Has(entry.Coin) {
				_ = store.Create(ctx, domain.Position{
					Symbol:          entry.Coin,
					AverageBuyPrice: entry.EntryPrice,
					SizeInDollars:   entry.PositionValue,
					SizeInQuote:     entry.Size,
					PnL:             pnl,
					PeakPnL:         pnl,
				})
				continue
			}
			store.Update(ctx, entry.Coin, domain.PositionUpdate{
				AverageBuyPrice: domain.Float64Ptr(entry.EntryPrice),
				SizeInDollars:   domain.Float64Ptr(entry.PositionValue),
				SizeInQuote:     domain.Float64Ptr(entry.Size),
				PnL:             domain.Float64Ptr(pnl),
			})
		}
		for _, pos := range store.List() {
			if !seen[pos.Symbol] {
				store.Delete(ctx, pos.Symbol)
			}
		}
	}
}

// startHTTPServer adds the HTTP API server and its graceful shutdown to the
// errgroup. remover is nil in monitor mode.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	store *state.Store,
	remover handler.PositionRemover,
) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(),
		Status:    handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), store),
		Positions: handler.NewPositionHandler(store, remover, a.logger),
	}
	if deps.Cycles != nil {
		handlers.History = handler.NewHistoryHandler(deps.Cycles, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:     a.cfg.Server.Port,
		APIToken: a.cfg.Server.APIToken,
	}, handlers, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
