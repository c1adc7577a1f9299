package domain

import (
	"context"
	"io"
	"time"
)

// CycleStore persists completed trade cycles.
type CycleStore interface {
	Insert(ctx context.Context, cycle TradeCycle) error
	ListRecent(ctx context.Context, limit int) ([]TradeCycle, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]TradeCycle, error)
	// ListBefore returns cycles closed before cutoff, oldest first, for
	// archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeCycle, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PositionCache mirrors the live position set into an external cache so that
// dashboards and other processes can read it without touching the engine.
type PositionCache interface {
	SetPosition(ctx context.Context, pos Position) error
	DeletePosition(ctx context.Context, symbol string) error
	GetPosition(ctx context.Context, symbol string) (Position, error)
	ListPositions(ctx context.Context) ([]Position, error)
}

// SignalBus relays serialized domain events to external consumers over a
// broker channel.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter stores immutable objects (event journals, cycle archives).
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
