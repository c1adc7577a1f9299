package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
	"github.com/mawtrade/mawbot/internal/state"
)

func newTestLauncher(t *testing.T, cfg LauncherConfig, exch *fakeExchange) (*Launcher, *state.Store, *eventLog) {
	t.Helper()
	logger := testLogger()
	b := bus.New(logger)
	store := state.NewStore(b, logger)
	ladder := dca.New(exch, dca.Config{
		BaseSize:   11,
		Multiplier: 2,
		Deviations: []float64{1, 1.6, 6, 13},
	}, logger)
	events := newEventLog(b)
	return NewLauncher(cfg, store, exch, ladder, logger), store, events
}

func TestLauncherOpensConfiguredSymbols(t *testing.T) {
	exch := &fakeExchange{fill: domain.Fill{OrderID: 1, Price: 42, Size: 2.5, FilledAt: time.Now()}}
	l, store, events := newTestLauncher(t, LauncherConfig{
		Symbols:  []string{"HYPE", "ETH"},
		Leverage: 5,
		BuySize:  100,
	}, exch)

	l.LaunchAll(context.Background())

	assert.Equal(t, []string{"HYPE", "ETH"}, exch.leverageCalls)
	require.Len(t, exch.marketOrders, 2)
	assert.Equal(t, domain.OrderSideBuy, exch.marketOrders[0].side)
	assert.Equal(t, 100.0, exch.marketOrders[0].size)
	require.Len(t, exch.laddersPlaced, 2)
	assert.Equal(t, 42.0, exch.laddersPlaced[0].referencePrice)

	for _, symbol := range []string{"HYPE", "ETH"} {
		pos, ok := store.Get(symbol)
		require.True(t, ok, symbol)
		assert.Equal(t, 42.0, pos.AverageBuyPrice)
		assert.Equal(t, 100.0, pos.SizeInDollars)
		assert.Equal(t, 2.5, pos.SizeInQuote)
		assert.False(t, pos.TTPActive)
		assert.Len(t, pos.LimitOrders, 4)
	}
	assert.Len(t, events.opened, 2)
}

func TestLauncherSkipsTrackedSymbol(t *testing.T) {
	exch := &fakeExchange{fill: domain.Fill{Price: 42, Size: 2.5}}
	l, store, _ := newTestLauncher(t, LauncherConfig{
		Symbols:  []string{"HYPE"},
		Leverage: 5,
		BuySize:  100,
	}, exch)

	require.NoError(t, store.Create(context.Background(), domain.Position{
		Symbol: "HYPE", AverageBuyPrice: 40, SizeInDollars: 80, SizeInQuote: 2,
	}))

	l.LaunchAll(context.Background())

	assert.Empty(t, exch.leverageCalls)
	assert.Empty(t, exch.marketOrders)
	pos, _ := store.Get("HYPE")
	assert.Equal(t, 40.0, pos.AverageBuyPrice, "tracked position untouched")
}

func TestLauncherContinuesAfterSymbolFailure(t *testing.T) {
	exch := &fakeExchange{fill: domain.Fill{Price: 42, Size: 2.5}, leverageErr: errors.New("bad symbol")}
	l, store, _ := newTestLauncher(t, LauncherConfig{
		Symbols:  []string{"BROKEN", "HYPE"},
		Leverage: 5,
		BuySize:  100,
	}, exch)

	l.LaunchAll(context.Background())

	// Leverage fails for every symbol here, so nothing opens, but every
	// symbol was attempted.
	assert.Equal(t, []string{"BROKEN", "HYPE"}, exch.leverageCalls)
	assert.False(t, store.Has("BROKEN"))
	assert.False(t, store.Has("HYPE"))
}

func TestLauncherOrderFailureLeavesNoTrackedPosition(t *testing.T) {
	exch := &fakeExchange{orderErr: errors.New("insufficient margin")}
	l, store, events := newTestLauncher(t, LauncherConfig{
		Symbols:  []string{"HYPE"},
		Leverage: 5,
		BuySize:  100,
	}, exch)

	l.LaunchAll(context.Background())

	assert.False(t, store.Has("HYPE"))
	assert.Empty(t, exch.laddersPlaced)
	assert.Empty(t, events.opened)
}
