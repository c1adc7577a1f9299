package hyperliquid

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mawtrade/mawbot/internal/domain"
)

// --------------------------------------------------------------------------
// WebSocket frames. Hyperliquid sends every numeric field as a decimal
// string, so the raw types keep them as strings and convert at the edge.
// --------------------------------------------------------------------------

// wsFrame is the envelope of every message on the socket.
type wsFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// wsCommand is an outbound control message (subscribe, ping).
type wsCommand struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

// wsSubscription identifies one stream to subscribe to.
type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// webData2 is the per-account state push. Only the clearinghouse slice is
// consumed; the frame carries far more that the engine does not need.
type webData2 struct {
	ClearinghouseState clearinghouseState `json:"clearinghouseState"`
}

type clearinghouseState struct {
	AssetPositions []assetPositionEntry `json:"assetPositions"`
}

type assetPositionEntry struct {
	Position rawPosition `json:"position"`
}

// rawPosition is one perp position as the API reports it.
type rawPosition struct {
	Coin          string `json:"coin"`
	Szi           string `json:"szi"`
	EntryPx       string `json:"entryPx"`
	PositionValue string `json:"positionValue"`
	UnrealizedPnl string `json:"unrealizedPnl"`
}

// toSnapshot converts a webData2 push into the domain snapshot, dropping
// flat entries (szi == 0). A malformed numeric field fails the whole frame.
func (w webData2) toSnapshot() (domain.AccountSnapshot, error) {
	snap := domain.AccountSnapshot{
		Positions:  make([]domain.AssetPosition, 0, len(w.ClearinghouseState.AssetPositions)),
		ReceivedAt: time.Now().UTC(),
	}

	for _, entry := range w.ClearinghouseState.AssetPositions {
		raw := entry.Position

		size, err := parseDecimal(raw.Szi, "szi")
		if err != nil {
			return domain.AccountSnapshot{}, err
		}
		if size == 0 {
			continue
		}

		entryPx, err := parseDecimal(raw.EntryPx, "entryPx")
		if err != nil {
			return domain.AccountSnapshot{}, err
		}
		value, err := parseDecimal(raw.PositionValue, "positionValue")
		if err != nil {
			return domain.AccountSnapshot{}, err
		}
		upnl, err := parseDecimal(raw.UnrealizedPnl, "unrealizedPnl")
		if err != nil {
			return domain.AccountSnapshot{}, err
		}

		snap.Positions = append(snap.Positions, domain.AssetPosition{
			Coin:          raw.Coin,
			Size:          size,
			EntryPrice:    entryPx,
			PositionValue: value,
			UnrealizedPnL: upnl,
		})
	}

	return snap, nil
}

// parseDecimal parses one of the API's stringly-typed numbers. The API
// omits some fields for flat positions, so empty means zero.
func parseDecimal(s, field string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("hyperliquid: parse %s %q: %w", field, s, err)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Exchange endpoint payloads.
// --------------------------------------------------------------------------

// orderWire is one order in an exchange "order" action.
type orderWire struct {
	Asset      int       `json:"a"`
	IsBuy      bool      `json:"b"`
	Price      string    `json:"p"`
	Size       string    `json:"s"`
	ReduceOnly bool      `json:"r"`
	Type       orderType `json:"t"`
	Cloid      string    `json:"c,omitempty"`
}

type orderType struct {
	Limit *limitOrderType `json:"limit,omitempty"`
}

type limitOrderType struct {
	// Tif is "Gtc" for resting ladder rungs, "Ioc" for market-style orders.
	Tif string `json:"tif"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type cancelWire struct {
	Asset   int   `json:"a"`
	OrderID int64 `json:"o"`
}

type cancelAction struct {
	Type    string       `json:"type"`
	Cancels []cancelWire `json:"cancels"`
}

type leverageAction struct {
	Type     string `json:"type"`
	Asset    int    `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage int    `json:"leverage"`
}

// exchangeResponse is the envelope of every /exchange reply.
type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// orderStatus reports the outcome of one order in an action. Exactly one of
// the fields is set.
type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		AvgPx   string `json:"avgPx"`
		TotalSz string `json:"totalSz"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

// --------------------------------------------------------------------------
// Info endpoint payloads.
// --------------------------------------------------------------------------

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// metaResponse lists the perp universe in asset-index order.
type metaResponse struct {
	Universe []assetMeta `json:"universe"`
}

type assetMeta struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}
