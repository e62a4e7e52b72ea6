package kv

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/salvacomida/miniapp/internal/util/atomicwrite"
)

// fileStore implementa Store sobre un documento JSON en disco.
// Es el análogo directo del localStorage: un solo archivo por
// instalación, reescrito completo en cada mutación (write-through).
type fileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// NewFile crea un Store respaldado por el archivo en path.
// Si el archivo no existe o está corrupto, arranca vacío (el contenido
// corrupto se descarta en la próxima escritura).
func NewFile(path string) (Store, error) {
	s := &fileStore{path: path, data: make(map[string]string)}
	b, err := os.ReadFile(path)
	if err == nil {
		var m map[string]string
		if json.Unmarshal(b, &m) == nil && m != nil {
			s.data = m
		}
	}
	return s, nil
}

func (s *fileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *fileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *fileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked persiste el documento completo. Caller debe tener el lock.
func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(s.path, b, 0600)
}
