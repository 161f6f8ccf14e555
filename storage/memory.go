package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// MemoryStore is an in-memory ObjectStore used by tests and local
// development. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores data at path, overwriting any existing object
func (m *MemoryStore) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
}

// Upload stores data at path, overwriting any existing object
func (m *MemoryStore) Upload(ctx context.Context, path string, data []byte) error {
	m.Put(path, data)
	return nil
}

// List returns objects under the given prefix, in lexical order
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []FileInfo
	for path, data := range m.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		parts := strings.Split(path, "/")
		infos = append(infos, FileInfo{
			Name: parts[len(parts)-1],
			Path: path,
			Size: int64(len(data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Download returns the contents of the object at path
func (m *MemoryStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[path]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "object %q", path)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes a single object. Deleting a missing object is not an error.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

// DeleteAll removes every object under the given prefix
func (m *MemoryStore) DeleteAll(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			delete(m.objects, path)
		}
	}
	return nil
}

// Len returns the number of stored objects
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
