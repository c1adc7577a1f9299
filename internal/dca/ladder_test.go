package dca_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
)

type fakeExchange struct {
	domain.ExchangeClient

	createdSymbol string
	createdRef    float64
	createdDevs   []float64
	createErr     error
	handle        domain.LadderHandle

	cancelled     bool
	cancelledWith domain.LadderHandle
	cancelErr     error
}

func (f *fakeExchange) CreateDcaLadder(_ context.Context, symbol string, referencePrice, baseSize, multiplier float64, deviations []float64) (domain.LadderHandle, error) {
	f.createdSymbol = symbol
	f.createdRef = referencePrice
	f.createdDevs = deviations
	return f.handle, f.createErr
}

func (f *fakeExchange) CancelLadder(_ context.Context, symbol string, deviations []float64, handle domain.LadderHandle) error {
	f.cancelled = true
	f.cancelledWith = handle
	return f.cancelErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlanGeometricSizes(t *testing.T) {
	cfg := dca.Config{
		BaseSize:   11,
		Multiplier: 2,
		Deviations: []float64{1, 1.6, 6, 13},
	}

	rungs := dca.Plan(100, cfg)
	require.Len(t, rungs, 4)

	assert.InDelta(t, 99.0, rungs[0].Price, 1e-9)
	assert.InDelta(t, 98.4, rungs[1].Price, 1e-9)
	assert.InDelta(t, 94.0, rungs[2].Price, 1e-9)
	assert.InDelta(t, 87.0, rungs[3].Price, 1e-9)

	assert.InDelta(t, 11.0, rungs[0].Size, 1e-9)
	assert.InDelta(t, 22.0, rungs[1].Size, 1e-9)
	assert.InDelta(t, 44.0, rungs[2].Size, 1e-9)
	assert.InDelta(t, 88.0, rungs[3].Size, 1e-9)
}

func TestPlanEmptyDeviations(t *testing.T) {
	rungs := dca.Plan(100, dca.Config{BaseSize: 10, Multiplier: 2})
	assert.Empty(t, rungs)
}

func TestPlaceDelegatesToClient(t *testing.T) {
	handle := domain.LadderHandle{{OrderID: 1}, {OrderID: 2}}
	ex := &fakeExchange{handle: handle}
	orch := dca.New(ex, dca.Config{BaseSize: 11, Multiplier: 2, Deviations: []float64{1, 2}}, testLogger())

	got, err := orch.Place(context.Background(), "HYPE", 30.5)
	require.NoError(t, err)
	assert.Equal(t, handle, got)
	assert.Equal(t, "HYPE", ex.createdSymbol)
	assert.Equal(t, 30.5, ex.createdRef)
	assert.Equal(t, []float64{1, 2}, ex.createdDevs)
}

func TestPlaceError(t *testing.T) {
	ex := &fakeExchange{createErr: errors.New("exchange down")}
	orch := dca.New(ex, dca.Config{Deviations: []float64{1}}, testLogger())

	_, err := orch.Place(context.Background(), "HYPE", 30)
	require.Error(t, err)
}

func TestCancelPassesHandleVerbatim(t *testing.T) {
	ex := &fakeExchange{}
	orch := dca.New(ex, dca.Config{Deviations: []float64{1, 2}}, testLogger())
	handle := domain.LadderHandle{{OrderID: 3, Cloid: "c1"}}

	require.NoError(t, orch.Cancel(context.Background(), "HYPE", handle))
	assert.True(t, ex.cancelled)
	assert.Equal(t, handle, ex.cancelledWith)
}

func TestCancelEmptyHandleIsNoOp(t *testing.T) {
	ex := &fakeExchange{}
	orch := dca.New(ex, dca.Config{Deviations: []float64{1}}, testLogger())

	require.NoError(t, orch.Cancel(context.Background(), "HYPE", nil))
	assert.False(t, ex.cancelled)
}
