// Package feed runs the resilient account data stream: it owns the
// connect-subscribe-receive lifecycle and the retry policy around the
// underlying WebSocket client.
package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/platform/hyperliquid"
)

// SnapshotHandler is called for every account snapshot the stream delivers.
type SnapshotHandler func(ctx context.Context, snap domain.AccountSnapshot)

// Config carries the stream endpoint and retry policy.
type Config struct {
	// WSURL is the WebSocket endpoint.
	WSURL string

	// User is the account address whose state is streamed.
	User string

	// RetryDelay is the pause between reconnect attempts.
	RetryDelay time.Duration

	// MaxRetries is how many consecutive failed attempts run at RetryDelay
	// before the feed escalates to LongRetryDelay. The feed never gives up.
	MaxRetries int

	// LongRetryDelay is the pause used once MaxRetries is exhausted.
	LongRetryDelay time.Duration

	// HeartbeatInterval is how often the application-level ping is sent.
	HeartbeatInterval time.Duration
}

// conn is the slice of the WebSocket client the feed drives. Satisfied by
// *hyperliquid.WSClient; tests substitute a scripted fake.
type conn interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, user string) error
	Ping(ctx context.Context) error
	ReadSnapshot(ctx context.Context) (domain.AccountSnapshot, error)
	Close() error
}

// AccountFeed keeps one subscription alive for the lifetime of the process,
// rebuilding the connection from scratch after every failure.
type AccountFeed struct {
	cfg     Config
	handler SnapshotHandler
	dial    func() conn
	logger  *slog.Logger
}

// New creates a feed that delivers snapshots to handler.
func New(cfg Config, handler SnapshotHandler, logger *slog.Logger) *AccountFeed {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.LongRetryDelay <= 0 {
		cfg.LongRetryDelay = time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}

	f := &AccountFeed{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(slog.String("component", "account_feed")),
	}
	f.dial = func() conn {
		return hyperliquid.NewWSClient(cfg.WSURL, logger)
	}
	return f
}

// Run drives the stream until ctx is cancelled. It returns only the context
// error; every transport failure is retried.
func (f *AccountFeed) Run(ctx context.Context) error {
	// Consecutive failures since the last healthy connection. Reset
	// explicitly here and again after every successful receive.
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		received, err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			retries = 0
		}

		retries++
		delay := retryDelay(f.cfg, retries)

		f.logger.WarnContext(ctx, "stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Int("attempt", retries),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// retryDelay picks the pause before the next attempt: the configured delay
// while under the retry ceiling, the long delay once past it.
func retryDelay(cfg Config, retries int) time.Duration {
	if retries > cfg.MaxRetries {
		return cfg.LongRetryDelay
	}
	return cfg.RetryDelay
}

// runConnection performs one full connect-subscribe-receive cycle. It
// reports whether at least one snapshot was delivered before the failure.
func (f *AccountFeed) runConnection(ctx context.Context) (bool, error) {
	f.logger.InfoContext(ctx, "connecting", slog.String("url", f.cfg.WSURL))

	c := f.dial()
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	if err := c.Subscribe(ctx, f.cfg.User); err != nil {
		return false, err
	}
	f.logger.InfoContext(ctx, "subscribed", slog.String("user", f.cfg.User))

	// The heartbeat and receive loops live and die together; either one
	// failing tears the connection down via the shared context.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(f.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := c.Ping(gctx); err != nil {
					return err
				}
			}
		}
	})

	var received bool
	g.Go(func() error {
		for {
			snap, err := c.ReadSnapshot(gctx)
			if err != nil {
				return err
			}
			if !received {
				received = true
				f.logger.InfoContext(gctx, "receiving account snapshots")
			}
			f.handler(gctx, snap)
		}
	})

	// Read received only after both goroutines have exited.
	err := g.Wait()
	return received, err
}
