package cloudsync

import "sync"

// ConnectivityMonitor tracks the frontend's online/offline signal.
type ConnectivityMonitor struct {
	mu          sync.RWMutex
	online      bool
	subscribers map[int64]func(bool)
	nextID      int64
}

// NewConnectivityMonitor starts in the given state.
func NewConnectivityMonitor(online bool) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		online:      online,
		subscribers: make(map[int64]func(bool)),
	}
}

func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the state and notifies subscribers only on a transition.
func (m *ConnectivityMonitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.subscribers))
	for _, listener := range m.subscribers {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(online)
	}
}

// Subscribe registers a listener and returns the function that removes it.
func (m *ConnectivityMonitor) Subscribe(listener func(bool)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subscribers[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}
