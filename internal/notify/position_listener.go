package notify

import (
	"context"
	"fmt"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/domain"
)

// PositionListener turns position lifecycle events into operator alerts.
type PositionListener struct {
	notifier *Notifier
}

// NewPositionListener wires the listener onto the event bus. Every position
// event from then on produces a notification, subject to the notifier's
// event filter.
func NewPositionListener(b *bus.Bus, notifier *Notifier) *PositionListener {
	l := &PositionListener{notifier: notifier}
	b.Subscribe(domain.EventPositionOpened, l.onOpened)
	b.Subscribe(domain.EventPositionUpdated, l.onUpdated)
	b.Subscribe(domain.EventPositionClosed, l.onClosed)
	return l
}

func (l *PositionListener) onOpened(ctx context.Context, payload any) error {
	ev, ok := payload.(domain.PositionOpened)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T on %s", payload, domain.EventPositionOpened)
	}
	msg := fmt.Sprintf("%s opened at %.4f for $%.2f", ev.Symbol, ev.AverageBuyPrice, ev.SizeInDollars)
	return l.notifier.Notify(ctx, domain.EventPositionOpened, "Position opened", msg)
}

func (l *PositionListener) onUpdated(ctx context.Context, payload any) error {
	ev, ok := payload.(domain.PositionUpdated)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T on %s", payload, domain.EventPositionUpdated)
	}
	msg := fmt.Sprintf("%s updated", ev.Symbol)
	if ev.Fields.PnL != nil {
		msg = fmt.Sprintf("%s updated, pnl %.2f%%", ev.Symbol, *ev.Fields.PnL)
	}
	return l.notifier.Notify(ctx, domain.EventPositionUpdated, "Position updated", msg)
}

func (l *PositionListener) onClosed(ctx context.Context, payload any) error {
	ev, ok := payload.(domain.PositionClosed)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T on %s", payload, domain.EventPositionClosed)
	}
	msg := fmt.Sprintf("%s closed with pnl %.2f%%", ev.Symbol, ev.FinalPnL)
	return l.notifier.Notify(ctx, domain.EventPositionClosed, "Position closed", msg)
}
