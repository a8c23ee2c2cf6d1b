package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KNICEX/listing-agent/internal/entity"
)

// Notifier 新上币记录保存成功后的通知
type Notifier interface {
	Notify(ctx context.Context, listing entity.Listing) error
}

type NotifierFunc func(ctx context.Context, listing entity.Listing) error

func (f NotifierFunc) Notify(ctx context.Context, listing entity.Listing) error {
	return f(ctx, listing)
}

type multiNotifier []Notifier

// Multi 依次通知全部 Notifier, 单个失败不影响其余
func Multi(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

func (m multiNotifier) Notify(ctx context.Context, listing entity.Listing) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, listing); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type logNotifier struct{}

// Log 仅记录日志, 未配置任何推送时使用
func Log() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, listing entity.Listing) error {
	slog.Info("new listing", "token", listing.Token, "exchange", listing.Exchange,
		"market", listing.Market, "channel", listing.Channel, "strategy", listing.Strategy)
	return nil
}
