package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebData2ToSnapshot(t *testing.T) {
	raw := `{
		"clearinghouseState": {
			"assetPositions": [
				{"position": {"coin": "HYPE", "szi": "5", "entryPx": "10", "positionValue": "50", "unrealizedPnl": "0"}},
				{"position": {"coin": "BTC", "szi": "0", "entryPx": "", "positionValue": "0", "unrealizedPnl": "0"}},
				{"position": {"coin": "ETH", "szi": "-1.5", "entryPx": "3200", "positionValue": "4800", "unrealizedPnl": "-12.5"}}
			]
		}
	}`

	var data webData2
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	snap, err := data.toSnapshot()
	require.NoError(t, err)

	// Flat entries are dropped.
	require.Len(t, snap.Positions, 2)
	assert.False(t, snap.ReceivedAt.IsZero())

	hype := snap.Positions[0]
	assert.Equal(t, "HYPE", hype.Coin)
	assert.Equal(t, 5.0, hype.Size)
	assert.Equal(t, 10.0, hype.EntryPrice)
	assert.Equal(t, 50.0, hype.PositionValue)
	assert.Equal(t, 0.0, hype.UnrealizedPnL)
	assert.Equal(t, 0.0, hype.PnLPercent())

	eth := snap.Positions[1]
	assert.Equal(t, -1.5, eth.Size)
	assert.Equal(t, -12.5, eth.UnrealizedPnL)
}

func TestWebData2ToSnapshotMalformedNumber(t *testing.T) {
	data := webData2{
		ClearinghouseState: clearinghouseState{
			AssetPositions: []assetPositionEntry{
				{Position: rawPosition{Coin: "HYPE", Szi: "5", EntryPx: "not-a-number"}},
			},
		},
	}

	_, err := data.toSnapshot()
	assert.ErrorContains(t, err, "entryPx")
}

func TestWebData2EmptyFieldsParseAsZero(t *testing.T) {
	v, err := parseDecimal("", "szi")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}
