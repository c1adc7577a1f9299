package domain

import "context"

// ExchangeClient is the trading surface the engine consumes. Implementations
// talk to the remote exchange; the engine only decides when to call them and
// what to record locally.
type ExchangeClient interface {
	// SetLeverage sets the leverage for subsequent orders on symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// MarketOrder places a market order sized in dollars and returns the fill.
	MarketOrder(ctx context.Context, symbol string, side OrderSide, sizeInDollars float64) (Fill, error)

	// MarketClose closes the full open position on symbol at market.
	MarketClose(ctx context.Context, symbol string, side OrderSide) error

	// CreateDcaLadder places limit buy orders at the given percentage
	// deviations below referencePrice, sized baseSize * multiplier^i, and
	// returns an opaque handle for later cancellation as a group.
	CreateDcaLadder(ctx context.Context, symbol string, referencePrice, baseSize, multiplier float64, deviations []float64) (LadderHandle, error)

	// CancelLadder cancels a previously created ladder. The handle must be
	// passed back unmodified.
	CancelLadder(ctx context.Context, symbol string, deviations []float64, handle LadderHandle) error
}
