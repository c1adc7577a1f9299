package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/domain"
)

type fakeBlobWriter struct {
	paths  []string
	bodies []string
	err    error
}

func (f *fakeBlobWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.paths = append(f.paths, path)
	f.bodies = append(f.bodies, string(body))
	return nil
}

func TestEventJournalFlushesBusEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	writer := &fakeBlobWriter{}
	journal := NewEventJournal(b, writer, time.Minute, logger)

	ctx := context.Background()
	b.Publish(ctx, domain.EventPositionOpened, domain.PositionOpened{Symbol: "HYPE"})
	b.Publish(ctx, domain.EventPositionClosed, domain.PositionClosed{Symbol: "HYPE", FinalPnL: 4.4})

	require.NoError(t, journal.Flush(ctx))

	require.Len(t, writer.paths, 1)
	assert.True(t, strings.HasPrefix(writer.paths[0], "journal/"))

	lines := strings.Split(strings.TrimRight(writer.bodies[0], "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"position_opened"`)
	assert.Contains(t, lines[1], `"position_closed"`)
	assert.Contains(t, lines[1], `"final_pnl":4.4`)
}

func TestEventJournalSerializesSparseUpdateFields(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	writer := &fakeBlobWriter{}
	journal := NewEventJournal(b, writer, time.Minute, logger)

	ctx := context.Background()
	b.Publish(ctx, domain.EventPositionUpdated, domain.PositionUpdated{
		Symbol: "HYPE",
		Fields: domain.PositionUpdate{PnL: domain.Float64Ptr(2.5)},
	})

	require.NoError(t, journal.Flush(ctx))
	require.Len(t, writer.bodies, 1)

	// Changed fields survive serialization; unchanged ones are omitted.
	assert.Contains(t, writer.bodies[0], `"pnl":2.5`)
	assert.NotContains(t, writer.bodies[0], "average_buy_price")
	assert.NotContains(t, writer.bodies[0], "ttp_active")
}

func TestEventJournalEmptyFlushIsNoOp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	writer := &fakeBlobWriter{}
	journal := NewEventJournal(b, writer, time.Minute, logger)

	require.NoError(t, journal.Flush(context.Background()))
	assert.Empty(t, writer.paths)
}

func TestEventJournalRequeuesOnUploadFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	writer := &fakeBlobWriter{err: assert.AnError}
	journal := NewEventJournal(b, writer, time.Minute, logger)

	ctx := context.Background()
	b.Publish(ctx, domain.EventPositionOpened, domain.PositionOpened{Symbol: "HYPE"})

	require.Error(t, journal.Flush(ctx))

	// Backend recovers; the entry is still there.
	writer.err = nil
	require.NoError(t, journal.Flush(ctx))
	require.Len(t, writer.bodies, 1)
	assert.Contains(t, writer.bodies[0], `"HYPE"`)
}
