// Package service hosts the glue between the in-process event bus and
// external systems: the cache mirror and the pub/sub relay.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/state"
)

// EventChannel is the pub/sub channel lifecycle events are relayed on.
const EventChannel = "mawbot:events"

// relayEnvelope is the wire form of a relayed event.
type relayEnvelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Mirror keeps an external position cache in sync with the in-memory store
// and relays lifecycle events to external consumers. Both sinks are
// best-effort: a cache or broker failure is logged, never propagated back
// into the trading path.
type Mirror struct {
	store   *state.Store
	cache   domain.PositionCache
	signals domain.SignalBus
	logger  *slog.Logger
}

// NewMirror wires the mirror onto the event bus. cache and signals may each
// be nil when the corresponding backend is not configured.
func NewMirror(
	b *bus.Bus,
	store *state.Store,
	cache domain.PositionCache,
	signals domain.SignalBus,
	logger *slog.Logger,
) *Mirror {
	m := &Mirror{
		store:   store,
		cache:   cache,
		signals: signals,
		logger:  logger.With(slog.String("component", "mirror")),
	}

	b.Subscribe(domain.EventPositionOpened, func(ctx context.Context, payload any) error {
		ev, ok := payload.(domain.PositionOpened)
		if !ok {
			return fmt.Errorf("service: unexpected payload %T", payload)
		}
		m.sync(ctx, ev.Symbol)
		m.relay(ctx, domain.EventPositionOpened, ev)
		return nil
	})

	b.Subscribe(domain.EventPositionUpdated, func(ctx context.Context, payload any) error {
		ev, ok := payload.(domain.PositionUpdated)
		if !ok {
			return fmt.Errorf("service: unexpected payload %T", payload)
		}
		m.sync(ctx, ev.Symbol)
		m.relay(ctx, domain.EventPositionUpdated, ev)
		return nil
	})

	b.Subscribe(domain.EventPositionClosed, func(ctx context.Context, payload any) error {
		ev, ok := payload.(domain.PositionClosed)
		if !ok {
			return fmt.Errorf("service: unexpected payload %T", payload)
		}
		m.remove(ctx, ev.Symbol)
		m.relay(ctx, domain.EventPositionClosed, ev)
		return nil
	})

	return m
}

// sync copies the store's current record for symbol into the cache. When the
// store no longer tracks the symbol the cache entry is removed instead, so a
// racing close cannot resurrect it.
func (m *Mirror) sync(ctx context.Context, symbol string) {
	if m.cache == nil {
		return
	}

	pos, ok := m.store.Get(symbol)
	if !ok {
		m.remove(ctx, symbol)
		return
	}
	if err := m.cache.SetPosition(ctx, pos); err != nil {
		m.logger.WarnContext(ctx, "cache sync failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Mirror) remove(ctx context.Context, symbol string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.DeletePosition(ctx, symbol); err != nil {
		m.logger.WarnContext(ctx, "cache delete failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Mirror) relay(ctx context.Context, topic string, payload any) {
	if m.signals == nil {
		return
	}

	data, err := json.Marshal(relayEnvelope{Topic: topic, Payload: payload})
	if err != nil {
		m.logger.WarnContext(ctx, "relay marshal failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := m.signals.Publish(ctx, EventChannel, data); err != nil {
		m.logger.WarnContext(ctx, "relay publish failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}
