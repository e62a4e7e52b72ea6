package kv

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store sobre go-cache, sin expiración.
// Útil para tests y desarrollo.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory crea un Store en memoria.
func NewMemory() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	m.c.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryStore) Keys(ctx context.Context) ([]string, error) {
	items := m.c.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	return out, nil
}

func (m *memoryStore) Close() error {
	m.c.Flush()
	return nil
}
