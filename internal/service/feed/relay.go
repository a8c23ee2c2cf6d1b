package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	frameSources = "sources"
	frameMessage = "message"
	frameError   = "error"
)

type frame struct {
	Type     string     `json:"type"`
	ID       string     `json:"id,omitempty"`
	SourceID string     `json:"source_id,omitempty"`
	Text     string     `json:"text,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Sources  []Source   `json:"sources,omitempty"`
	Error    string     `json:"error,omitempty"`
}

var _ Transport = (*RelayTransport)(nil)

// RelayTransport 通过 websocket 中继服务接收频道消息
type RelayTransport struct {
	url          string
	token        string
	dialTimeout  time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration
	now          func() time.Time

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]Handler
	pending  map[string]chan frame
	closed   bool

	writeMu sync.Mutex
	readErr chan error
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(t *RelayTransport)

func WithDialTimeout(d time.Duration) Option {
	return func(t *RelayTransport) {
		t.dialTimeout = d
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(t *RelayTransport) {
		t.pingInterval = d
		t.readTimeout = d * 2
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *RelayTransport) {
		t.now = now
	}
}

func NewRelayTransport(url, token string, opts ...Option) *RelayTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &RelayTransport{
		url:          url,
		token:        token,
		dialTimeout:  10 * time.Second,
		pingInterval: 25 * time.Second,
		readTimeout:  60 * time.Second,
		now:          time.Now,
		handlers:     make(map[string]Handler),
		pending:      make(map[string]chan frame),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RelayTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.conn != nil {
		return nil
	}

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	dctx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dctx, t.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: relay responded %d", ErrAuthentication, resp.StatusCode)
		}
		return fmt.Errorf("dial relay %s: %w", t.url, err)
	}
	slog.Info("feed relay connected", "url", t.url)

	t.conn = conn
	t.readErr = make(chan error, 1)
	go t.readLoop(conn, t.readErr)
	return nil
}

func (t *RelayTransport) Sources(ctx context.Context) ([]Source, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.conn == nil {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := uuid.NewString()
	ch := make(chan frame, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.write(frame{Type: frameSources, ID: id}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrClosed
	case resp := <-ch:
		if resp.Type == frameError {
			return nil, fmt.Errorf("relay sources request: %s", resp.Error)
		}
		return resp.Sources, nil
	}
}

func (t *RelayTransport) Register(sourceID string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.handlers[sourceID] = h
	return nil
}

func (t *RelayTransport) Deregister(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, sourceID)
}

func (t *RelayTransport) Run(ctx context.Context) error {
	t.mu.Lock()
	conn, readErr := t.conn, t.readErr
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	pingTicker := time.NewTicker(t.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = t.Close()
			return ctx.Err()
		case <-t.ctx.Done():
			return ErrClosed
		case err := <-readErr:
			t.mu.Lock()
			closed := t.closed
			t.conn = nil
			t.mu.Unlock()
			_ = conn.Close()
			if closed {
				return ErrClosed
			}
			return fmt.Errorf("relay connection lost: %w", err)
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func (t *RelayTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	t.cancel()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (t *RelayTransport) write(f frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (t *RelayTransport) readLoop(conn *websocket.Conn, errCh chan<- error) {
	_ = conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	})

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(t.readTimeout))

		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			slog.Warn("drop malformed relay frame", "frame", string(b), "error", err)
			continue
		}
		t.handleFrame(f)
	}
}

func (t *RelayTransport) handleFrame(f frame) {
	switch f.Type {
	case frameMessage:
		t.mu.Lock()
		h, ok := t.handlers[f.SourceID]
		t.mu.Unlock()
		if !ok {
			slog.Debug("drop relay message from unregistered source", "source_id", f.SourceID)
			return
		}
		received := t.now()
		if f.Date != nil {
			received = *f.Date
		}
		h(t.ctx, Event{SourceID: f.SourceID, Text: f.Text, ReceivedAt: received})
	case frameSources, frameError:
		t.mu.Lock()
		ch, ok := t.pending[f.ID]
		t.mu.Unlock()
		if ok {
			select {
			case ch <- f:
			default:
			}
			return
		}
		if f.Type == frameError {
			slog.Warn("relay reported error", "error", f.Error)
		}
	default:
		slog.Debug("ignore relay frame", "type", f.Type)
	}
}
