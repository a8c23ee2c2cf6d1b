package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/notification"
	"github.com/gorilla/websocket"
)

const (
	typeListing     = "listing"
	typeHealthCheck = "health_check"
)

type listingFrame struct {
	Type string `json:"type"`
	entity.Listing
}

type clientFrame struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
}

var _ notification.Notifier = (*Hub)(nil)

// Hub websocket 广播, 每个保存成功的上币记录推送给所有在线客户端
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	// 写串行化, 广播与 health_check 回复可能并发
	mu sync.Mutex
}

func (c *client) writeJSON(v any, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(v)
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: 5 * time.Second,
		clients:      make(map[*client]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn}
	h.add(c)
	defer h.remove(c)

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f clientFrame
		if err := json.Unmarshal(b, &f); err != nil {
			slog.Warn("invalid json from websocket client", "message", string(b))
			continue
		}
		if f.Type == typeHealthCheck {
			if err := c.writeJSON(clientFrame{Type: typeHealthCheck, Status: "healthy"}, h.writeTimeout); err != nil {
				return
			}
		}
	}
}

func (h *Hub) Notify(ctx context.Context, listing entity.Listing) error {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		slog.Debug("no websocket clients to broadcast listing", "token", listing.Token)
		return nil
	}
	frame := listingFrame{Type: typeListing, Listing: listing}
	for _, c := range clients {
		if err := c.writeJSON(frame, h.writeTimeout); err != nil {
			slog.Warn("drop websocket client", "remote", c.conn.RemoteAddr().String(), "error", err)
			h.remove(c)
		}
	}
	return nil
}

// Clients 在线客户端数量
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 断开全部客户端
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("websocket client connected", "remote", c.conn.RemoteAddr().String(), "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		slog.Info("websocket client disconnected", "clients", n)
	}
}
