package subscription

import (
	"sync"
	"time"
)

type RunState string

const (
	RunStopped  RunState = "stopped"
	RunStarting RunState = "starting"
	RunRunning  RunState = "running"
)

// Lifecycle 监听器的运行状态, 由 main 持有并传给需要查询或修改的组件
type Lifecycle struct {
	mu      sync.RWMutex
	state   RunState
	changed time.Time
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: RunStopped, changed: time.Now()}
}

func (l *Lifecycle) State() (RunState, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.changed
}

func (l *Lifecycle) IsRunning() bool {
	state, _ := l.State()
	return state == RunRunning
}

func (l *Lifecycle) Set(state RunState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == state {
		return
	}
	l.state = state
	l.changed = time.Now()
}
