package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPollServer(t *testing.T, batches map[int64][]domain.RawEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		cursor, err := strconv.ParseInt(r.URL.Query().Get("cursor"), 10, 64)
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}

		events := batches[cursor]
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor": cursor + int64(len(events)) + 1,
			"events": events,
		})
	}))
}

func TestPollingOpenAndNext(t *testing.T) {
	server := newPollServer(t, map[int64][]domain.RawEvent{
		-1: {},
		0:  {{Event: "first"}, {Event: "second"}},
	})
	defer server.Close()

	transport := NewPollingTransport(server.URL, 50*time.Millisecond, logger.NewNop())

	conn, err := transport.Open(context.Background(), "token")
	require.NoError(t, err)
	defer conn.Close()

	first, err := conn.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", first.Event)

	second, err := conn.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", second.Event)
}

func TestPollingOpenRejectsBadToken(t *testing.T) {
	server := newPollServer(t, nil)
	defer server.Close()

	transport := NewPollingTransport(server.URL, 50*time.Millisecond, logger.NewNop())

	_, err := transport.Open(context.Background(), "wrong")
	assert.Error(t, err)
}

func TestPollingNextAfterCloseFails(t *testing.T) {
	server := newPollServer(t, map[int64][]domain.RawEvent{-1: {}})
	defer server.Close()

	transport := NewPollingTransport(server.URL, 50*time.Millisecond, logger.NewNop())

	conn, err := transport.Open(context.Background(), "token")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = conn.Next(context.Background())
	assert.Error(t, err)
}

func TestPollingNextStopsOnContextCancel(t *testing.T) {
	server := newPollServer(t, map[int64][]domain.RawEvent{-1: {}})
	defer server.Close()

	transport := NewPollingTransport(server.URL, 50*time.Millisecond, logger.NewNop())

	conn, err := transport.Open(context.Background(), "token")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = conn.Next(ctx)
	assert.Error(t, err)
}
