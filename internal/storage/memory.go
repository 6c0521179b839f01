package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sdko-org/imgpress/internal/errdefs"
)

type memObject struct {
	data      []byte
	createdAt time.Time
}

// MemoryStorage is an in-process Storage. List returns names in insertion
// order.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
	order   []string
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memObject),
		now:     time.Now,
	}
}

// WithClock replaces the creation-time source.
func (m *MemoryStorage) WithClock(now func() time.Time) *MemoryStorage {
	m.now = now
	return m
}

func (m *MemoryStorage) Location(name string) string {
	return "memory://" + name
}

func (m *MemoryStorage) Put(ctx context.Context, name string, content io.Reader) (int64, error) {
	if !ValidName(name) {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("invalid artifact name %q", name))
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; ok {
		return 0, alreadyExists(name)
	}
	m.objects[name] = memObject{data: data, createdAt: m.now()}
	m.order = append(m.order, name)
	return int64(len(data)), nil
}

func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *MemoryStorage) Stat(ctx context.Context, name string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	if !ok {
		return FileInfo{}, errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s", name))
	}
	return FileInfo{Name: name, Size: int64(len(obj.data)), CreatedAt: obj.createdAt}, nil
}

func (m *MemoryStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	if !ok {
		return nil, errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s", name))
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s", name))
	}
	delete(m.objects, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
