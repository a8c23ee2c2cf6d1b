package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KNICEX/listing-agent/internal/service/feed"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSources = []feed.Source{
	{ID: "100", Name: "BinanceAnnouncements"},
	{ID: "200", Name: "CoinbaseAssets"},
	{ID: "300", Name: "OKXAnnouncements"},
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
	chs  []string
}

func (r *recorder) Process(ctx context.Context, channel string, evt feed.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, evt.Text)
	r.chs = append(r.chs, channel)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func routeIDs(routes []RouteInfo) []string {
	return lo.Map(routes, func(item RouteInfo, index int) string {
		return item.SourceID
	})
}

func TestManager_ReconcileIdempotent(t *testing.T) {
	tr := newFakeTransport(testSources...)
	channels := &fakeChannels{names: []string{"BinanceAnnouncements", "CoinbaseAssets"}}
	m := NewManager(tr, channels, &recorder{})

	first, err := m.Reconcile(context.Background())
	require.NoError(t, err)
	routes := m.Routes()

	second, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, routes[0].SourceID, m.Routes()[0].SourceID)
	assert.Equal(t, []string{"100", "200"}, routeIDs(m.Routes()))
	assert.Equal(t, 2, tr.handlerCount())
	// 第二次对账先注销旧路由再注册
	assert.Equal(t, []string{"100", "200"}, tr.deregistered)
	assert.Len(t, tr.registered, 4)
}

func TestManager_ReconcileUnresolved(t *testing.T) {
	tr := newFakeTransport(testSources...)
	channels := &fakeChannels{names: []string{"binanceannouncements", "DoesNotExist", "okxANNOUNCEMENTS"}}
	m := NewManager(tr, channels, &recorder{})

	report, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	require.Contains(t, report.Failed, "DoesNotExist")
	assert.ErrorIs(t, report.Failed["DoesNotExist"], ErrSourceNotResolved)
	assert.Equal(t, []string{"100", "300"}, report.Active)

	routes := m.Routes()
	require.Len(t, routes, 2)
	// 注册的是上游的规范名称
	assert.Equal(t, "BinanceAnnouncements", routes[0].CanonicalName)
	assert.Equal(t, []string{"binanceannouncements"}, routes[0].ConfiguredNames)

	states := lo.KeyBy(m.States(), func(item ChannelState) string { return item.Name })
	assert.Equal(t, StateFailed, states["DoesNotExist"].State)
	assert.Equal(t, StateActive, states["okxANNOUNCEMENTS"].State)
	assert.Equal(t, "300", states["okxANNOUNCEMENTS"].SourceID)
}

func TestManager_ReconcileRemoved(t *testing.T) {
	tr := newFakeTransport(testSources...)
	channels := &fakeChannels{names: []string{"BinanceAnnouncements", "CoinbaseAssets"}}
	m := NewManager(tr, channels, &recorder{})

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	channels.set("CoinbaseAssets")
	report, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"100"}, report.Removed)
	assert.Equal(t, []string{"200"}, routeIDs(m.Routes()))
	assert.False(t, tr.emit("100", "Binance Will List Example Token (EXT)"))

	states := lo.KeyBy(m.States(), func(item ChannelState) string { return item.Name })
	assert.Equal(t, StateRemoved, states["BinanceAnnouncements"].State)
	assert.Equal(t, StateActive, states["CoinbaseAssets"].State)
}

func TestManager_SharedSource(t *testing.T) {
	tr := newFakeTransport(testSources...)
	channels := &fakeChannels{names: []string{"CoinbaseAssets", "coinbaseassets"}}
	m := NewManager(tr, channels, &recorder{})

	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	routes := m.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, []string{"CoinbaseAssets", "coinbaseassets"}, routes[0].ConfiguredNames)
	assert.Equal(t, 1, tr.handlerCount())
}

func TestManager_ReconcileErrors(t *testing.T) {
	tr := newFakeTransport(testSources...)
	tr.sourcesErr = errors.New("relay unavailable")
	m := NewManager(tr, &fakeChannels{names: []string{"CoinbaseAssets"}}, &recorder{})

	_, err := m.Reconcile(context.Background())
	assert.Error(t, err)
	assert.Empty(t, m.Routes())

	m = NewManager(newFakeTransport(testSources...), &fakeChannels{err: errors.New("db down")}, &recorder{})
	_, err = m.Reconcile(context.Background())
	assert.Error(t, err)

	require.NoError(t, m.Close(context.Background()))
	_, err = m.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_DispatchIsolation(t *testing.T) {
	tr := newFakeTransport(testSources...)
	var (
		mu   sync.Mutex
		seen []string
	)
	proc := ProcessorFunc(func(ctx context.Context, channel string, evt feed.Event) error {
		mu.Lock()
		seen = append(seen, evt.Text)
		mu.Unlock()
		switch evt.Text {
		case "panic":
			panic("boom")
		case "fail":
			return errors.New("persist failed")
		}
		return nil
	})
	m := NewManager(tr, &fakeChannels{names: []string{"BinanceAnnouncements", "CoinbaseAssets"}}, proc)
	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	assert.True(t, tr.emit("100", "panic"))
	assert.True(t, tr.emit("100", "fail"))
	assert.True(t, tr.emit("100", "ok"))
	assert.True(t, tr.emit("200", "other route"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []string{"panic", "fail", "ok", "other route"}, seen)
	mu.Unlock()
	assert.Equal(t, []string{"100", "200"}, routeIDs(m.Routes()))

	require.NoError(t, m.Close(context.Background()))
	assert.Empty(t, m.Routes())
	assert.Equal(t, 0, tr.handlerCount())
}

func TestManager_OrderedDispatch(t *testing.T) {
	tr := newFakeTransport(testSources...)
	rec := &recorder{}
	m := NewManager(tr, &fakeChannels{names: []string{"BinanceAnnouncements"}}, rec, WithOrderedDispatch(8))
	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	var want []string
	for i := 0; i < 50; i++ {
		text := time.Duration(i).String()
		want = append(want, text)
		require.True(t, tr.emit("100", text))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, want, rec.texts())
	assert.Equal(t, "BinanceAnnouncements", rec.chs[0])
}

func TestManager_OrderedQueueFull(t *testing.T) {
	tr := newFakeTransport(testSources...)
	release := make(chan struct{})
	rec := &recorder{}
	proc := ProcessorFunc(func(ctx context.Context, channel string, evt feed.Event) error {
		_ = rec.Process(ctx, channel, evt)
		<-release
		return nil
	})
	m := NewManager(tr, &fakeChannels{names: []string{"BinanceAnnouncements"}}, proc,
		WithOrderedDispatch(1), WithEnqueueTimeout(20*time.Millisecond))
	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	require.True(t, tr.emit("100", "a"))
	// 等待 worker 取走第一条并阻塞在处理中
	require.Eventually(t, func() bool {
		return len(rec.texts()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, tr.emit("100", "b"))
	start := time.Now()
	require.True(t, tr.emit("100", "c"))
	// 队列满时有限等待后丢弃, 不会一直阻塞读循环
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, []string{"a", "b"}, rec.texts())
}

func TestManager_DispatchAfterClose(t *testing.T) {
	tr := newFakeTransport(testSources...)
	rec := &recorder{}
	m := NewManager(tr, &fakeChannels{names: []string{"BinanceAnnouncements"}}, rec)
	_, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	// 传输层可能在注销前已经取到 handler
	tr.mu.Lock()
	stale := tr.handlers["100"]
	tr.mu.Unlock()
	require.NotNil(t, stale)

	require.NoError(t, m.Close(context.Background()))
	stale(context.Background(), feed.Event{SourceID: "100", Text: "late"})

	assert.Never(t, func() bool {
		return len(rec.texts()) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, m.Close(context.Background()))
}
