package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/feed"
)

var (
	// ErrSourceNotResolved 配置的频道名在上游找不到
	ErrSourceNotResolved = errors.New("source not resolved")
	ErrManagerClosed     = errors.New("subscription manager closed")
)

// State 单个配置频道的订阅状态
type State string

const (
	StateUnregistered State = "unregistered"
	StateResolving    State = "resolving"
	StateActive       State = "active"
	StateRemoved      State = "removed"
	StateFailed       State = "failed"
)

// ChannelStore 配置的频道列表
type ChannelStore interface {
	FindAll(ctx context.Context) ([]entity.Channel, error)
}

// Processor 处理一条路由上的消息, channel 为上游的规范名称
type Processor interface {
	Process(ctx context.Context, channel string, evt feed.Event) error
}

type ProcessorFunc func(ctx context.Context, channel string, evt feed.Event) error

func (f ProcessorFunc) Process(ctx context.Context, channel string, evt feed.Event) error {
	return f(ctx, channel, evt)
}

// RouteInfo 活动路由的快照
type RouteInfo struct {
	SourceID        string    `json:"source_id"`
	CanonicalName   string    `json:"canonical_name"`
	ConfiguredNames []string  `json:"configured_names"`
	State           State     `json:"state"`
	RegisteredAt    time.Time `json:"registered_at"`
}

type ChannelState struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	SourceID string `json:"source_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report 一次对账的结果
type Report struct {
	Active  []string         // SourceID
	Removed []string         // SourceID
	Failed  map[string]error // 配置的频道名 -> 错误
}
