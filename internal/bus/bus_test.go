package bus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mawtrade/mawbot/internal/bus"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var got []string
	b.Subscribe("position_opened", func(_ context.Context, payload any) error {
		got = append(got, "first:"+payload.(string))
		return nil
	})
	b.Subscribe("position_opened", func(_ context.Context, payload any) error {
		got = append(got, "second:"+payload.(string))
		return nil
	})

	b.Publish(context.Background(), "position_opened", "HYPE")

	assert.Equal(t, []string{"first:HYPE", "second:HYPE"}, got)
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var delivered bool
	b.Subscribe("position_closed", func(_ context.Context, _ any) error {
		return errors.New("telegram timeout")
	})
	b.Subscribe("position_closed", func(_ context.Context, _ any) error {
		delivered = true
		return nil
	})

	// Must not panic and must reach the second handler.
	b.Publish(context.Background(), "position_closed", nil)
	assert.True(t, delivered)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.Publish(context.Background(), "position_updated", 42)
}
