package stream

import (
	"context"
	"net/http"
	"strings"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/gorilla/websocket"
)

// WebsocketTransport reads the event stream over a websocket. Only used
// when the deployment supports the upgrade; polling stays the default.
type WebsocketTransport struct {
	endpoint string
	log      logger.Logger
}

func NewWebsocketTransport(endpoint string, log logger.Logger) *WebsocketTransport {
	return &WebsocketTransport{endpoint: endpoint, log: log}
}

func (t *WebsocketTransport) Open(ctx context.Context, token string) (domain.StreamConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, toWebsocketURL(t.endpoint), header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return &websocketConn{conn: conn}, nil
}

func toWebsocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Next(ctx context.Context) (*domain.RawEvent, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	}

	var event domain.RawEvent
	if err := c.conn.ReadJSON(&event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
