package hyperliquid

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsServer upgrades the first request and hands the server side of the
// connection to the script.
func wsServer(t *testing.T, script func(*websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		script(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSConnectErrorKeepsCause(t *testing.T) {
	// A plain HTTP endpoint rejects the upgrade, so the dial fails.
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), discardLogger())
	err := client.Connect(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
	assert.Contains(t, err.Error(), "bad handshake")
}

func TestWSReadErrorKeepsCause(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})

	client := NewWSClient(url, discardLogger())
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.ReadSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
	assert.Contains(t, err.Error(), "close 1000")
}

func TestWSWriteErrorKeepsCause(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {})

	client := NewWSClient(url, discardLogger())
	require.NoError(t, client.Connect(context.Background()))

	// Pull the socket out from under the client so the next write fails
	// at the transport layer.
	client.mu.Lock()
	client.conn.Close()
	client.mu.Unlock()

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
	assert.Contains(t, err.Error(), "use of closed network connection")
}
