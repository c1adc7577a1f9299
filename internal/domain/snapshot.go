package domain

import "time"

// AssetPosition is one remote position entry from an account snapshot.
// Size carries the sign the exchange reported (negative for shorts).
type AssetPosition struct {
	Coin          string
	Size          float64
	EntryPrice    float64
	PositionValue float64
	UnrealizedPnL float64
}

// PnLPercent returns the unrealized PnL as a percentage of position value.
// A zero position value resolves to 0 rather than dividing by zero.
func (p AssetPosition) PnLPercent() float64 {
	if p.PositionValue == 0 {
		return 0
	}
	return p.UnrealizedPnL / p.PositionValue * 100
}

// AccountSnapshot is a point-in-time push of the account's full open
// position set from the exchange feed.
type AccountSnapshot struct {
	Positions  []AssetPosition
	ReceivedAt time.Time
}
