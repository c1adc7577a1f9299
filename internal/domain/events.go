package domain

import "time"

// Event topics carried on the in-process bus.
const (
	EventPositionOpened  = "position_opened"
	EventPositionUpdated = "position_updated"
	EventPositionClosed  = "position_closed"
)

// PositionOpened is published after a position record is created.
type PositionOpened struct {
	Symbol          string    `json:"symbol"`
	AverageBuyPrice float64   `json:"average_buy_price"`
	SizeInDollars   float64   `json:"size_in_dollars"`
	SizeInQuote     float64   `json:"size_in_quote"`
	TTPActive       bool      `json:"ttp_active"`
	At              time.Time `json:"at"`
}

// PositionUpdated is published after a position record is mutated. Fields
// mirrors the sparse update that was applied; nil means unchanged and is
// omitted from the serialized form.
type PositionUpdated struct {
	Symbol string         `json:"symbol"`
	Fields PositionUpdate `json:"fields"`
	At     time.Time      `json:"at"`
}

// PositionClosed is published after a position is closed on the exchange or
// removed from tracking.
type PositionClosed struct {
	Symbol   string    `json:"symbol"`
	FinalPnL float64   `json:"final_pnl"`
	At       time.Time `json:"at"`
}
