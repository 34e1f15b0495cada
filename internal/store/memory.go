package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"facecam/internal/services"
)

// Memory is a map-backed Store. The Fail hooks let tests inject failures or
// delays for specific keys; they run without the store lock held.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailPut, when set, is consulted before every write.
	FailPut func(key string) error
	// FailRemove, when set, is consulted before every payload removal.
	FailRemove func(key string) error
	// FailSize, when set, is consulted before every payload size query.
	FailSize func(key string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) put(key string, data []byte) error {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return services.Wrap(services.ErrPersistenceWriteFailed, "store", "put", key, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(data)
	return nil
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(data), true
}

// SetRaw writes a key directly, bypassing fault hooks.
func (m *Memory) SetRaw(key string, data []byte) {
	m.mu.Lock()
	m.data[key] = slices.Clone(data)
	m.mu.Unlock()
}

// Has reports whether key is present.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *Memory) PutMetadataList(_ context.Context, data []byte) error {
	return m.put(MetadataKey, data)
}

func (m *Memory) GetMetadataList(_ context.Context) ([]byte, bool, error) {
	data, ok := m.get(MetadataKey)
	return data, ok, nil
}

func (m *Memory) PutPayload(_ context.Context, id string, data []byte) error {
	return m.put(PayloadKey(id), data)
}

func (m *Memory) GetPayload(_ context.Context, id string) ([]byte, bool, error) {
	data, ok := m.get(PayloadKey(id))
	return data, ok, nil
}

func (m *Memory) PayloadSize(_ context.Context, id string) (int64, bool, error) {
	key := PayloadKey(id)
	if m.FailSize != nil {
		if err := m.FailSize(key); err != nil {
			return 0, false, services.Wrap(services.ErrPersistenceReadCorrupt, "store", "payload size", id, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	return int64(len(data)), ok, nil
}

func (m *Memory) RemovePayload(_ context.Context, id string) error {
	key := PayloadKey(id)
	if m.FailRemove != nil {
		if err := m.FailRemove(key); err != nil {
			return services.Wrap(services.ErrPersistenceWriteFailed, "store", "remove payload", id, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) PayloadIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for key := range m.data {
		if id, ok := PayloadID(key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
