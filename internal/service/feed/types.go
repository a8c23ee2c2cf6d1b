package feed

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAuthentication 上游拒绝凭证, 不应重试
	ErrAuthentication = errors.New("feed authentication failed")
	ErrClosed         = errors.New("feed transport closed")
	ErrNotConnected   = errors.New("feed transport not connected")
)

// Source 上游可订阅的消息源(频道)
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Event struct {
	SourceID   string
	Text       string
	ReceivedAt time.Time
}

type Handler func(ctx context.Context, evt Event)

// Transport 消息源连接, 同一个 SourceID 只保留一个 Handler
type Transport interface {
	Connect(ctx context.Context) error
	// Sources 当前连接可见的全部消息源
	Sources(ctx context.Context) ([]Source, error)
	Register(sourceID string, h Handler) error
	Deregister(sourceID string)
	// Run 阻塞读取直到连接断开或 ctx 结束
	Run(ctx context.Context) error
	Close() error
}
