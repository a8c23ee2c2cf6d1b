package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KNICEX/listing-agent/internal/schedule"
	"github.com/KNICEX/listing-agent/internal/service/feed"
)

var _ schedule.Task = (*Listener)(nil)

// Listener 连接上游, 对账后阻塞接收消息. 断开后不自动重连, 由外部重启
type Listener struct {
	transport feed.Transport
	manager   *Manager
	lifecycle *Lifecycle
	// 退出时等待正在处理的消息的最长时间
	drainTimeout time.Duration
}

func NewListener(transport feed.Transport, manager *Manager, lifecycle *Lifecycle) *Listener {
	return &Listener{
		transport:    transport,
		manager:      manager,
		lifecycle:    lifecycle,
		drainTimeout: 30 * time.Second,
	}
}

func (l *Listener) Name() string {
	return "channel listener"
}

func (l *Listener) Run(ctx context.Context) error {
	l.lifecycle.Set(RunStarting)
	defer l.lifecycle.Set(RunStopped)
	defer l.drain()

	if err := l.transport.Connect(ctx); err != nil {
		if errors.Is(err, feed.ErrAuthentication) {
			slog.Error("feed authentication failed, listener stopped", "error", err)
		}
		return err
	}

	report, err := l.manager.Reconcile(ctx)
	if err != nil {
		_ = l.transport.Close()
		return err
	}
	slog.Info("listener started", "routes", len(report.Active), "failed", len(report.Failed))
	l.lifecycle.Set(RunRunning)

	err = l.transport.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, feed.ErrClosed) {
		slog.Info("listener stopped")
		return nil
	}
	slog.Error("listener terminated", "error", err)
	return err
}

// Stop 断开上游连接, Run 随后返回
func (l *Listener) Stop(ctx context.Context) error {
	err := l.transport.Close()
	l.lifecycle.Set(RunStopped)
	return err
}

func (l *Listener) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), l.drainTimeout)
	defer cancel()
	if err := l.manager.Close(ctx); err != nil {
		slog.Warn("listener drain incomplete", "error", err)
	}
}
