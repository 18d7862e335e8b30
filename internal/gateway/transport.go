package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/Guliveer/guildkit/internal/constants"
)

// Transport is one duplex, message-oriented connection to the gateway.
type Transport interface {
	// Read blocks until the next frame arrives or the connection fails.
	Read(ctx context.Context) ([]byte, error)
	// Ping round-trips a keepalive; it needs a concurrent Read to observe the pong.
	Ping(ctx context.Context) error
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Dialer opens transports. The Manager owns every Transport it dials.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Transport, error)
}

// WebSocketDialer dials real WebSocket connections.
type WebSocketDialer struct {
	// HTTPClient is used for the handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
	// ReadLimit caps the frame size; zero means constants.GatewayReadLimit.
	ReadLimit int64
}

// Dial opens a WebSocket to url with header attached to the handshake.
func (d WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: handshake status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = constants.GatewayReadLimit
	}
	conn.SetReadLimit(limit)

	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "closing")
}
