package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KNICEX/listing-agent/internal/service/feed"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type route struct {
	sourceID     string
	canonical    string
	names        []string
	registeredAt time.Time

	// 仅在顺序分发时使用
	queue chan feed.Event
	done  chan struct{}
}

type Manager struct {
	transport feed.Transport
	channels  ChannelStore
	processor Processor

	ordered        bool
	queueSize      int
	enqueueTimeout time.Duration
	unitTimeout    time.Duration
	now            func() time.Time

	// mu 串行化对账, 同时保护 routes/states
	mu     sync.Mutex
	routes map[string]*route
	states map[string]ChannelState
	closed bool

	// dispatchMu 保证 Close 开始等待后不再有新的 inflight.Add
	dispatchMu sync.RWMutex
	stopped    bool
	inflight   sync.WaitGroup
}

type Option func(m *Manager)

// WithOrderedDispatch 每条路由一个 FIFO 队列, 同一路由的消息严格按顺序处理
func WithOrderedDispatch(queueSize int) Option {
	return func(m *Manager) {
		m.ordered = true
		if queueSize > 0 {
			m.queueSize = queueSize
		}
	}
}

// WithEnqueueTimeout 顺序分发时队列满最多等待的时间, 超时丢弃该消息.
// 等待期间上游读循环被阻塞, 需要小于传输层的读超时
func WithEnqueueTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.enqueueTimeout = d
		}
	}
}

// WithUnitTimeout 单条消息处理的超时时间
func WithUnitTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.unitTimeout = d
	}
}

func NewManager(transport feed.Transport, channels ChannelStore, processor Processor, opts ...Option) *Manager {
	m := &Manager{
		transport:   transport,
		channels:    channels,
		processor:   processor,
		queueSize:      256,
		enqueueTimeout: 5 * time.Second,
		unitTimeout:    2 * time.Minute,
		now:            time.Now,
		routes:         make(map[string]*route),
		states:         make(map[string]ChannelState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reconcile 读取一次频道配置与上游消息源的快照, 使路由与配置一致.
// 重复执行不会产生重复路由: 已有路由总是先注销再注册
func (m *Manager) Reconcile(ctx context.Context) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Report{}, ErrManagerClosed
	}

	channels, err := m.channels.FindAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load watched channels: %w", err)
	}
	sources, err := m.transport.Sources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list feed sources: %w", err)
	}
	byName := lo.KeyBy(sources, func(item feed.Source) string {
		return strings.ToLower(strings.TrimSpace(item.Name))
	})

	report := Report{Failed: make(map[string]error)}
	desired := make(map[string]*route)
	configured := make(map[string]struct{}, len(channels))

	for _, ch := range channels {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			continue
		}
		if _, dup := configured[name]; dup {
			continue
		}
		configured[name] = struct{}{}
		m.states[name] = ChannelState{Name: name, State: StateResolving}

		src, ok := byName[strings.ToLower(name)]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrSourceNotResolved, name)
			slog.Warn("watched channel not resolved", "channel", name, "error", err)
			report.Failed[name] = err
			m.states[name] = ChannelState{Name: name, State: StateFailed, Error: err.Error()}
			continue
		}
		r, ok := desired[src.ID]
		if !ok {
			r = &route{sourceID: src.ID, canonical: src.Name}
			desired[src.ID] = r
		}
		r.names = append(r.names, name)
	}

	for id, old := range m.routes {
		if _, ok := desired[id]; ok {
			continue
		}
		m.deregister(old)
		delete(m.routes, id)
		report.Removed = append(report.Removed, id)
		slog.Info("channel route removed", "source_id", id, "channel", old.canonical)
	}
	for name, st := range m.states {
		if _, ok := configured[name]; !ok && st.State != StateRemoved {
			m.states[name] = ChannelState{Name: name, State: StateRemoved}
		}
	}

	ids := lo.Keys(desired)
	sort.Strings(ids)
	for _, id := range ids {
		r := desired[id]
		if old, ok := m.routes[id]; ok {
			m.deregister(old)
			delete(m.routes, id)
		}
		r.registeredAt = m.now()
		if err := m.transport.Register(id, m.handlerFor(r)); err != nil {
			slog.Error("register channel route failed", "source_id", id, "channel", r.canonical, "error", err)
			for _, name := range r.names {
				report.Failed[name] = err
				m.states[name] = ChannelState{Name: name, State: StateFailed, SourceID: id, Error: err.Error()}
			}
			continue
		}
		if m.ordered {
			m.startWorker(r)
		}
		m.routes[id] = r
		report.Active = append(report.Active, id)
		for _, name := range r.names {
			m.states[name] = ChannelState{Name: name, State: StateActive, SourceID: id}
		}
	}

	sort.Strings(report.Removed)
	slog.Info("channel reconciliation finished",
		"active", len(report.Active), "removed", len(report.Removed), "failed", len(report.Failed))
	return report, nil
}

// Routes 按 SourceID 排序的活动路由快照
func (m *Manager) Routes() []RouteInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := lo.MapToSlice(m.routes, func(id string, r *route) RouteInfo {
		return RouteInfo{
			SourceID:        id,
			CanonicalName:   r.canonical,
			ConfiguredNames: append([]string(nil), r.names...),
			State:           StateActive,
			RegisteredAt:    r.registeredAt,
		}
	})
	sort.Slice(res, func(i, j int) bool {
		return res[i].SourceID < res[j].SourceID
	})
	return res
}

// States 每个配置过的频道名的状态, 按名称排序
func (m *Manager) States() []ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := lo.Values(m.states)
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

// Close 注销全部路由并等待正在处理的消息, 最多等到 ctx 结束
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for id, r := range m.routes {
			m.deregister(r)
			delete(m.routes, id)
			for _, name := range r.names {
				m.states[name] = ChannelState{Name: name, State: StateUnregistered, SourceID: id}
			}
		}
	}
	m.mu.Unlock()

	m.dispatchMu.Lock()
	m.stopped = true
	m.dispatchMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait in-flight messages: %w", ctx.Err())
	}
}

func (m *Manager) deregister(r *route) {
	m.transport.Deregister(r.sourceID)
	if r.done != nil {
		close(r.done)
	}
}

func (m *Manager) handlerFor(r *route) feed.Handler {
	if !m.ordered {
		return func(ctx context.Context, evt feed.Event) {
			m.dispatchMu.RLock()
			if m.stopped {
				m.dispatchMu.RUnlock()
				slog.Warn("drop message after manager closed", "source_id", r.sourceID)
				return
			}
			m.inflight.Add(1)
			m.dispatchMu.RUnlock()
			go func() {
				defer m.inflight.Done()
				m.process(ctx, r.canonical, evt)
			}()
		}
	}
	return func(ctx context.Context, evt feed.Event) {
		select {
		case r.queue <- evt:
			return
		case <-r.done:
			slog.Warn("drop message on deregistered route", "source_id", r.sourceID)
			return
		default:
		}
		// 队列已满时最多等待 enqueueTimeout, 之后丢弃
		timer := time.NewTimer(m.enqueueTimeout)
		defer timer.Stop()
		select {
		case r.queue <- evt:
		case <-r.done:
			slog.Warn("drop message on deregistered route", "source_id", r.sourceID)
		case <-timer.C:
			slog.Warn("drop message, route queue full", "source_id", r.sourceID,
				"queue_size", cap(r.queue), "wait", m.enqueueTimeout)
		}
	}
}

func (m *Manager) startWorker(r *route) {
	r.queue = make(chan feed.Event, m.queueSize)
	r.done = make(chan struct{})
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		for {
			select {
			case evt := <-r.queue:
				m.process(context.Background(), r.canonical, evt)
			case <-r.done:
				// 注销前已入队的消息仍然处理
				for {
					select {
					case evt := <-r.queue:
						m.process(context.Background(), r.canonical, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// process 一条消息是一个独立的处理单元, 失败或 panic 不影响路由
func (m *Manager) process(ctx context.Context, channel string, evt feed.Event) {
	unit := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.unitTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("message processing panicked", "unit", unit, "channel", channel, "panic", p)
		}
	}()

	start := time.Now()
	if err := m.processor.Process(ctx, channel, evt); err != nil {
		slog.Error("message processing failed", "unit", unit, "channel", channel, "error", err)
		return
	}
	slog.Debug("message processed", "unit", unit, "channel", channel, "cost", time.Since(start))
}
