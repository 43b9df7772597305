package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Client for tests. Writes go through Put/Append so
// tests can model a shard growing between polls. Read faults can be injected
// to exercise retry paths.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// failReads, when positive, makes that many upcoming ReadRange calls
	// fail with failWith before normal behavior resumes.
	failReads int
	failWith  error
}

// NewMemory returns an empty in-memory client.
func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

// Put replaces the blob at key.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
}

// Append extends the blob at key, creating it if absent.
func (m *Memory) Append(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append(m.blobs[key], data...)
}

// FailReads arranges for the next n ReadRange calls to return err.
func (m *Memory) FailReads(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = n
	m.failWith = err
}

// List implements Client.
func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Info
	for k, v := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Info{Key: k, Length: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ReadRange implements Client.
func (m *Memory) ReadRange(_ context.Context, key string, offset, length int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads > 0 {
		m.failReads--
		return nil, m.failWith
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return append([]byte(nil), data[offset:end]...), nil
}
