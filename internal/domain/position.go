// Package domain defines the core value types shared across the bot: the
// tracked position, partial position updates, account snapshots pushed by the
// exchange, and the interfaces the engine consumes.
package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// LadderOrder is one resting limit buy order of a DCA ladder.
type LadderOrder struct {
	OrderID   int64   `json:"order_id"`
	Cloid     string  `json:"cloid"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Deviation float64 `json:"deviation"` // percent below the reference price
}

// LadderHandle identifies a placed DCA ladder as a group. The engine stores
// it verbatim and hands it back unmodified for cancellation; its contents are
// owned by the exchange client.
type LadderHandle []LadderOrder

// Position is the tracked state for one traded symbol. Exactly one Position
// exists per symbol; all mutations go through the position store so that
// PeakPnL never falls below PnL.
type Position struct {
	Symbol          string       `json:"symbol"`
	AverageBuyPrice float64      `json:"average_buy_price"`
	SizeInDollars   float64      `json:"size_in_dollars"`
	SizeInQuote     float64      `json:"size_in_quote"`
	PnL             float64      `json:"pnl"`      // unrealized, percent of position value
	PeakPnL         float64      `json:"peak_pnl"` // max PnL seen this cycle
	LimitOrders     LadderHandle `json:"limit_orders"`
	TTPActive       bool         `json:"ttp_active"`
	OpenedAt        time.Time    `json:"opened_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// PositionUpdate is a sparse update to a Position. Nil fields are left
// unchanged by the store's merge; when PnL is set the store recomputes
// PeakPnL as max(previous peak, new PnL) unless PeakPnL is set explicitly.
type PositionUpdate struct {
	AverageBuyPrice *float64      `json:"average_buy_price,omitempty"`
	SizeInDollars   *float64      `json:"size_in_dollars,omitempty"`
	SizeInQuote     *float64      `json:"size_in_quote,omitempty"`
	PnL             *float64      `json:"pnl,omitempty"`
	PeakPnL         *float64      `json:"peak_pnl,omitempty"`
	LimitOrders     *LadderHandle `json:"limit_orders,omitempty"`
	TTPActive       *bool         `json:"ttp_active,omitempty"`
}

// Fill is the result of a filled market order.
type Fill struct {
	OrderID  int64
	Price    float64
	Size     float64
	FilledAt time.Time
}

// Float64Ptr returns a pointer to v. Convenience for building PositionUpdate
// literals.
func Float64Ptr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
