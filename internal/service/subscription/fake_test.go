package subscription

import (
	"context"
	"sync"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/feed"
)

type fakeTransport struct {
	mu           sync.Mutex
	sources      []feed.Source
	sourcesErr   error
	connectErr   error
	handlers     map[string]feed.Handler
	registered   []string
	deregistered []string
	closed       chan struct{}
	closeOnce    sync.Once
}

func newFakeTransport(sources ...feed.Source) *fakeTransport {
	return &fakeTransport{
		sources:  sources,
		handlers: make(map[string]feed.Handler),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	return f.connectErr
}

func (f *fakeTransport) Sources(ctx context.Context) ([]feed.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.Source(nil), f.sources...), f.sourcesErr
}

func (f *fakeTransport) Register(sourceID string, h feed.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[sourceID] = h
	f.registered = append(f.registered, sourceID)
	return nil
}

func (f *fakeTransport) Deregister(sourceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, sourceID)
	f.deregistered = append(f.deregistered, sourceID)
}

func (f *fakeTransport) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.closed:
		return feed.ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// emit 同步调用已注册的 handler, 没有注册返回 false
func (f *fakeTransport) emit(sourceID, text string) bool {
	f.mu.Lock()
	h, ok := f.handlers[sourceID]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(context.Background(), feed.Event{SourceID: sourceID, Text: text})
	return true
}

func (f *fakeTransport) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeChannels struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeChannels) FindAll(ctx context.Context) ([]entity.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]entity.Channel, 0, len(f.names))
	for i, n := range f.names {
		res = append(res, entity.Channel{Id: int64(i + 1), Name: n})
	}
	return res, f.err
}

func (f *fakeChannels) set(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = names
}
