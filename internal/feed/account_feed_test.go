package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/domain"
)

var errConnLost = errors.New("conn lost")

// scriptedConn fails connection attempts until failuresLeft hits zero, then
// delivers the scripted snapshots and drops the connection.
type scriptedConn struct {
	mu           sync.Mutex
	failuresLeft *int
	snapshots    []domain.AccountSnapshot
	delivered    int
	subscribed   string
}

func (c *scriptedConn) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.failuresLeft > 0 {
		*c.failuresLeft--
		return errConnLost
	}
	return nil
}

func (c *scriptedConn) Subscribe(_ context.Context, user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = user
	return nil
}

func (c *scriptedConn) Ping(context.Context) error { return nil }

func (c *scriptedConn) ReadSnapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delivered >= len(c.snapshots) {
		return domain.AccountSnapshot{}, errConnLost
	}
	snap := c.snapshots[c.delivered]
	c.delivered++
	return snap, nil
}

func (c *scriptedConn) Close() error { return nil }

func newTestFeed(cfg Config, handler SnapshotHandler) *AccountFeed {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, handler, logger)
}

func TestRetryDelayEscalatesPastCeiling(t *testing.T) {
	cfg := Config{
		RetryDelay:     5 * time.Second,
		MaxRetries:     3,
		LongRetryDelay: time.Minute,
	}

	assert.Equal(t, 5*time.Second, retryDelay(cfg, 1))
	assert.Equal(t, 5*time.Second, retryDelay(cfg, 3))
	assert.Equal(t, time.Minute, retryDelay(cfg, 4))
	assert.Equal(t, time.Minute, retryDelay(cfg, 100))
}

func TestFeedDeliversSnapshotsAndReconnects(t *testing.T) {
	failures := 2
	var dials int
	var mu sync.Mutex
	var got []domain.AccountSnapshot

	snap := domain.AccountSnapshot{
		Positions:  []domain.AssetPosition{{Coin: "HYPE", Size: 5, EntryPrice: 10, PositionValue: 50}},
		ReceivedAt: time.Now(),
	}

	f := newTestFeed(Config{
		WSURL:             "ws://test",
		User:              "0xabc",
		RetryDelay:        time.Millisecond,
		MaxRetries:        5,
		LongRetryDelay:    time.Millisecond,
		HeartbeatInterval: time.Hour,
	}, func(_ context.Context, s domain.AccountSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})
	f.dial = func() conn {
		mu.Lock()
		dials++
		mu.Unlock()
		return &scriptedConn{
			failuresLeft: &failures,
			snapshots:    []domain.AccountSnapshot{snap},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// Wait until several connections have come and gone.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	// Two failed dials, then each later dial delivers one snapshot before
	// dropping; the feed kept reconnecting throughout.
	assert.GreaterOrEqual(t, dials, 5)
	assert.Equal(t, "HYPE", got[0].Positions[0].Coin)
}

// A connection that delivered snapshots resets the retry counter, so a feed
// that keeps losing otherwise-healthy connections must stay on the short
// delay and never escalate to the long one.
func TestFeedResetsRetryCounterAfterSnapshots(t *testing.T) {
	failures := 0
	var mu sync.Mutex
	var got []domain.AccountSnapshot

	snap := domain.AccountSnapshot{
		Positions:  []domain.AssetPosition{{Coin: "HYPE", Size: 5, EntryPrice: 10, PositionValue: 50}},
		ReceivedAt: time.Now(),
	}

	f := newTestFeed(Config{
		WSURL:             "ws://test",
		User:              "0xabc",
		RetryDelay:        time.Millisecond,
		MaxRetries:        1,
		LongRetryDelay:    time.Hour,
		HeartbeatInterval: time.Hour,
	}, func(_ context.Context, s domain.AccountSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})
	f.dial = func() conn {
		return &scriptedConn{
			failuresLeft: &failures,
			snapshots:    []domain.AccountSnapshot{snap},
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// Every connection delivers one snapshot and drops. If the counter did
	// not reset, the second drop would already hit the hour-long delay and
	// the third snapshot would never arrive.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFeedSubscribesWithConfiguredUser(t *testing.T) {
	failures := 0
	var mu sync.Mutex
	var conns []*scriptedConn

	f := newTestFeed(Config{
		User:              "0xdeadbeef",
		RetryDelay:        time.Millisecond,
		MaxRetries:        2,
		LongRetryDelay:    time.Millisecond,
		HeartbeatInterval: time.Hour,
	}, func(context.Context, domain.AccountSnapshot) {})
	f.dial = func() conn {
		c := &scriptedConn{failuresLeft: &failures}
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
		return c
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "0xdeadbeef", conns[0].subscribed)
}

func TestFeedReturnsOnlyOnContextCancel(t *testing.T) {
	failures := 1 << 30 // never connects successfully
	f := newTestFeed(Config{
		RetryDelay:        time.Millisecond,
		MaxRetries:        1,
		LongRetryDelay:    time.Millisecond,
		HeartbeatInterval: time.Hour,
	}, func(context.Context, domain.AccountSnapshot) {})
	f.dial = func() conn {
		return &scriptedConn{failuresLeft: &failures}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// Give it time to fail plenty of attempts without terminating.
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("feed terminated on its own: %v", err)
	default:
	}

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
