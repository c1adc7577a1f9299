package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mawtrade/mawbot/internal/domain"
)

// positionsKey is the hash holding the live position mirror, one field per
// symbol, each value the JSON-encoded position.
const positionsKey = "positions"

// PositionCache implements domain.PositionCache using a Redis hash.
type PositionCache struct {
	rdb *redis.Client
}

// NewPositionCache creates a PositionCache backed by the given Client.
func NewPositionCache(c *Client) *PositionCache {
	return &PositionCache{rdb: c.Underlying()}
}

// SetPosition upserts the mirror entry for pos.Symbol.
func (pc *PositionCache) SetPosition(ctx context.Context, pos domain.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal position %s: %w", pos.Symbol, err)
	}
	if err := pc.rdb.HSet(ctx, positionsKey, pos.Symbol, data).Err(); err != nil {
		return fmt.Errorf("redis: set position %s: %w", pos.Symbol, err)
	}
	return nil
}

// DeletePosition removes the mirror entry for symbol. Deleting an absent
// entry is not an error.
func (pc *PositionCache) DeletePosition(ctx context.Context, symbol string) error {
	if err := pc.rdb.HDel(ctx, positionsKey, symbol).Err(); err != nil {
		return fmt.Errorf("redis: delete position %s: %w", symbol, err)
	}
	return nil
}

// GetPosition reads the mirror entry for symbol. It returns
// domain.ErrNotFound when no entry exists.
func (pc *PositionCache) GetPosition(ctx context.Context, symbol string) (domain.Position, error) {
	data, err := pc.rdb.HGet(ctx, positionsKey, symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("redis: get position %s: %w", symbol, err)
	}

	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("redis: decode position %s: %w", symbol, err)
	}
	return pos, nil
}

// ListPositions returns every mirrored position.
func (pc *PositionCache) ListPositions(ctx context.Context) ([]domain.Position, error) {
	vals, err := pc.rdb.HGetAll(ctx, positionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(vals))
	for symbol, raw := range vals {
		var pos domain.Position
		if err := json.Unmarshal([]byte(raw), &pos); err != nil {
			return nil, fmt.Errorf("redis: decode position %s: %w", symbol, err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
