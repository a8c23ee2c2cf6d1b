package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret"

// newRelayServer 模拟中继: 回应 sources 请求后推送 pushed 中的消息
func newRelayServer(t *testing.T, sources []Source, pushed []frame) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req frame
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Type != frameSources {
				continue
			}
			if err := conn.WriteJSON(frame{Type: frameSources, ID: req.ID, Sources: sources}); err != nil {
				return
			}
			for _, f := range pushed {
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRelayTransport_Authentication(t *testing.T) {
	srv := newRelayServer(t, nil, nil)

	tr := NewRelayTransport(wsURL(srv), "wrong")
	err := tr.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestRelayTransport_NotConnected(t *testing.T) {
	tr := NewRelayTransport("ws://127.0.0.1:1", testToken)

	_, err := tr.Sources(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, tr.Run(context.Background()), ErrNotConnected)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Register("1", func(ctx context.Context, evt Event) {}), ErrClosed)
	assert.ErrorIs(t, tr.Connect(context.Background()), ErrClosed)
}

func TestRelayTransport_SourcesAndMessages(t *testing.T) {
	date := time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)
	sources := []Source{{ID: "100", Name: "BinanceAnnouncements"}, {ID: "200", Name: "CoinbaseAssets"}}
	srv := newRelayServer(t, sources, []frame{
		{Type: frameMessage, SourceID: "999", Text: "unknown source"},
		{Type: frameMessage, SourceID: "100", Text: "first", Date: &date},
		{Type: frameMessage, SourceID: "100", Text: "second"},
	})

	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewRelayTransport(wsURL(srv), testToken, WithClock(func() time.Time { return fixed }))
	t.Cleanup(func() { _ = tr.Close() })

	events := make(chan Event, 8)
	require.NoError(t, tr.Register("100", func(ctx context.Context, evt Event) {
		events <- evt
	}))
	require.NoError(t, tr.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- tr.Run(ctx)
	}()

	got, err := tr.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sources, got)

	for _, want := range []Event{
		{SourceID: "100", Text: "first", ReceivedAt: date},
		{SourceID: "100", Text: "second", ReceivedAt: fixed},
	} {
		select {
		case evt := <-events:
			assert.Equal(t, want.Text, evt.Text)
			assert.True(t, want.ReceivedAt.Equal(evt.ReceivedAt))
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for relay event")
		}
	}

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRelayTransport_Deregister(t *testing.T) {
	tr := NewRelayTransport("ws://127.0.0.1:1", testToken)
	called := false
	require.NoError(t, tr.Register("1", func(ctx context.Context, evt Event) { called = true }))
	tr.Deregister("1")

	tr.handleFrame(frame{Type: frameMessage, SourceID: "1", Text: "hello"})
	assert.False(t, called)
}
