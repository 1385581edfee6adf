package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

var errConnClosed = errors.New("stream connection closed")

// PollingTransport reads the event stream over repeated HTTP long-poll
// requests. This is the default transport: serverless hosting does not
// guarantee a persistent socket upgrade.
type PollingTransport struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	log      logger.Logger
}

func NewPollingTransport(endpoint string, pollTimeout time.Duration, log logger.Logger) *PollingTransport {
	return &PollingTransport{
		endpoint: endpoint,
		timeout:  pollTimeout,
		client: &http.Client{
			// Leave headroom beyond the server-side hold.
			Timeout: pollTimeout + 10*time.Second,
		},
		log: log,
	}
}

func (t *PollingTransport) Open(ctx context.Context, token string) (domain.StreamConn, error) {
	// A zero-hold poll validates the token and yields the current cursor.
	resp, err := t.poll(ctx, token, -1, 0)
	if err != nil {
		return nil, err
	}

	return &pollingConn{
		transport: t,
		token:     token,
		cursor:    resp.Cursor,
		buffered:  resp.Events,
	}, nil
}

type pollResponse struct {
	Cursor int64             `json:"cursor"`
	Events []domain.RawEvent `json:"events"`
}

func (t *PollingTransport) poll(ctx context.Context, token string, cursor int64, hold time.Duration) (*pollResponse, error) {
	url := fmt.Sprintf("%s/poll?cursor=%d&wait=%d", t.endpoint, cursor, int64(hold/time.Millisecond))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream poll failed: status %d", httpResp.StatusCode)
	}

	var resp pollResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &resp, nil
}

type pollingConn struct {
	transport *PollingTransport
	token     string
	cursor    int64
	buffered  []domain.RawEvent
	closed    atomic.Bool
}

func (c *pollingConn) Next(ctx context.Context) (*domain.RawEvent, error) {
	for {
		if c.closed.Load() {
			return nil, errConnClosed
		}
		if len(c.buffered) > 0 {
			event := c.buffered[0]
			c.buffered = c.buffered[1:]
			return &event, nil
		}

		resp, err := c.transport.poll(ctx, c.token, c.cursor, c.transport.timeout)
		if err != nil {
			return nil, err
		}
		c.cursor = resp.Cursor
		c.buffered = resp.Events
	}
}

func (c *pollingConn) Close() error {
	c.closed.Store(true)
	return nil
}
