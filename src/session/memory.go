package session

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. Subscribers share one fan-out list.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[chan Change]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		subs:   make(map[chan Change]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	m.publish(key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	m.publish(key)
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 8)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *MemoryStore) publish(key string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- Change{Key: key}:
		default:
		}
	}
}
