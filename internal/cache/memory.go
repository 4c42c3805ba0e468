package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory store's entry count.
const DefaultCapacity = 1024

// Compile-time interface assertion.
var _ Store = (*Memory)(nil)

// memEntry is a stored entry plus its expiry and key (for LRU eviction).
type memEntry struct {
	key       string
	entry     Entry
	expiresAt time.Time
}

// Memory is an in-process LRU+TTL cache. Expired entries are dropped lazily on
// Get and when capacity eviction walks over them.
type Memory struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	order *list.List // front = most recently used
	byKey map[string]*list.Element
}

// MemoryOption configures a [Memory].
type MemoryOption func(*Memory)

// WithCapacity sets the maximum number of entries kept.
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithTTL sets the default entry lifetime.
func WithTTL(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// NewMemory creates an in-memory cache store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		order:    list.New(),
		byKey:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.byKey[key]
	if !ok {
		return Entry{}, false, nil
	}
	me := el.Value.(*memEntry)
	if time.Now().After(me.expiresAt) {
		m.order.Remove(el)
		delete(m.byKey, key)
		return Entry{}, false, nil
	}
	m.order.MoveToFront(el)
	return me.entry, true, nil
}

// Set implements [Store].
func (m *Memory) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.byKey[key]; ok {
		me := el.Value.(*memEntry)
		me.entry = entry
		me.expiresAt = time.Now().Add(ttl)
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memEntry{
		key:       key,
		entry:     entry,
		expiresAt: time.Now().Add(ttl),
	})
	m.byKey[key] = el

	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.byKey, oldest.Value.(*memEntry).key)
	}
	return nil
}

// Delete implements [Store].
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.byKey[key]; ok {
		m.order.Remove(el)
		delete(m.byKey, key)
	}
	return nil
}

// Flush implements [Store].
func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.byKey = make(map[string]*list.Element)
	return nil
}

// Close implements [Store]. A Memory store holds no external resources.
func (m *Memory) Close() error {
	return nil
}

// Len returns the current entry count, including not-yet-collected expired
// entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
