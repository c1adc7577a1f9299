// Package hyperliquid implements the exchange integration: the account data
// WebSocket and the signed REST trading client.
package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mawtrade/mawbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next message from the peer.
	// The server pushes webData2 roughly every second, so a quiet socket
	// this long is dead.
	pongWait = 60 * time.Second
)

// WSClient is a single-connection WebSocket client for the Hyperliquid
// account data stream. It deliberately does not reconnect itself; the feed
// layer owns the retry policy and builds a fresh client per attempt.
type WSClient struct {
	wsURL  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a client for the given WebSocket endpoint, e.g.
// "wss://api.hyperliquid.xyz/ws".
func NewWSClient(wsURL string, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "hyperliquid_ws")),
	}
}

// Connect establishes the WebSocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid/ws: connect: %v: %w", err, domain.ErrWSDisconnect)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	return nil
}

// Subscribe requests the webData2 stream for the given account address.
func (w *WSClient) Subscribe(ctx context.Context, user string) error {
	return w.send(wsCommand{
		Method: "subscribe",
		Subscription: &wsSubscription{
			Type: "webData2",
			User: user,
		},
	})
}

// Ping sends the application-level ping the server expects to keep the
// subscription alive.
func (w *WSClient) Ping(ctx context.Context) error {
	return w.send(wsCommand{Method: "ping"})
}

// ReadSnapshot blocks until the next account snapshot arrives. Frames on
// other channels and frames that fail to decode are logged and skipped;
// only a transport-level failure returns an error.
func (w *WSClient) ReadSnapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return domain.AccountSnapshot{}, fmt.Errorf("hyperliquid/ws: not connected: %w", domain.ErrWSDisconnect)
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.AccountSnapshot{}, err
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return domain.AccountSnapshot{}, fmt.Errorf("hyperliquid/ws: read: %v: %w", err, domain.ErrWSDisconnect)
		}

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			w.logger.WarnContext(ctx, "malformed frame, skipping",
				slog.String("error", err.Error()),
			)
			continue
		}

		if frame.Channel != "webData2" {
			continue
		}

		var data webData2
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			w.logger.WarnContext(ctx, "malformed webData2 payload, skipping",
				slog.String("error", err.Error()),
			)
			continue
		}

		snap, err := data.toSnapshot()
		if err != nil {
			w.logger.WarnContext(ctx, "unparseable position fields, skipping frame",
				slog.String("error", err.Error()),
			)
			continue
		}

		return snap, nil
	}
}

// Close tears down the connection. Safe to call more than once.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}

	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *WSClient) send(cmd wsCommand) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("hyperliquid/ws: not connected: %w", domain.ErrWSDisconnect)
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("hyperliquid/ws: marshal command: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("hyperliquid/ws: write: %v: %w", err, domain.ErrWSDisconnect)
	}
	return nil
}
