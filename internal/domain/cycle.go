package domain

import "time"

// TradeCycle is one completed open-to-close round trip for a symbol,
// persisted for later review. A close-and-reopen produces one cycle per
// trigger.
type TradeCycle struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	EntryPrice    float64   `json:"entry_price"`
	SizeInDollars float64   `json:"size_in_dollars"`
	FinalPnL      float64   `json:"final_pnl"`
	PeakPnL       float64   `json:"peak_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
	ClosedAt      time.Time `json:"closed_at"`
}
