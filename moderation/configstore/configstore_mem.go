package configstore

import (
	"context"
	"sync"
)

type MemStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]string),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(ctx context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	return nil
}

func (s *MemStore) SetMulti(ctx context.Context, vals map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range vals {
		s.data[k] = v
	}
	return nil
}

// The mutex is held across the recompute, so concurrent Updates of the
// same keys serialize instead of overwriting each other.
func (s *MemStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			cur[k] = v
		}
	}
	vals, err := fn(cur)
	if err != nil {
		return err
	}
	for k, v := range vals {
		s.data[k] = v
	}
	return nil
}

func (s *MemStore) List(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}
