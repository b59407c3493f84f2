package token

import (
	"context"
	"sync"
)

// MemoryStore is a non-durable Store for tests and degraded mode (no redis
// reachable). It still implements Watcher so cross-process reload behavior
// stays exercisable.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers []chan Change
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	watchers := append([]chan Change(nil), m.watchers...)
	m.mu.Unlock()

	broadcast(watchers, Change{Key: key, Value: value})
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	watchers := append([]chan Change(nil), m.watchers...)
	m.mu.Unlock()

	broadcast(watchers, Change{Key: key})
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)

	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func broadcast(watchers []chan Change, change Change) {
	for _, w := range watchers {
		select {
		case w <- change:
		default: // slow watcher, drop rather than block the writer
		}
	}
}
