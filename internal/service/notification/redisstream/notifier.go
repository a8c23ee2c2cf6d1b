package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/notification"
	"github.com/redis/go-redis/v9"
)

var _ notification.Notifier = (*Notifier)(nil)

// Notifier 写入 redis stream 并 publish, 供下游交易程序消费
type Notifier struct {
	rdb    redis.UniversalClient
	stream string
	ch     string
	maxLen int64
}

func New(rdb redis.UniversalClient, prefix string, maxLen int64) *Notifier {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "listing"
	}
	return &Notifier{
		rdb:    rdb,
		stream: prefix + ":listings",
		ch:     prefix + ":listings:pub",
		maxLen: maxLen,
	}
}

func (n *Notifier) Stream() string {
	return n.stream
}

func (n *Notifier) Channel() string {
	return n.ch
}

func (n *Notifier) Notify(ctx context.Context, listing entity.Listing) error {
	payload, err := json.Marshal(listing)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"id":       listing.Id,
			"token":    listing.Token,
			"exchange": listing.Exchange,
			"market":   listing.Market,
			"ts_ms":    listing.ObservedAt.UnixMilli(),
			"payload":  string(payload),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}
	if err := n.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	if err := n.rdb.Publish(ctx, n.ch, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.ch, err)
	}
	return nil
}
