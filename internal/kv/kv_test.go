package kv

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// drivers bajo test: memory y file comparten el mismo contrato.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("NewFile err: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"file":   fs,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "missing"); !IsNotFound(err) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := s.Set(ctx, "a", "1"); err != nil {
				t.Fatalf("Set err: %v", err)
			}
			if err := s.Set(ctx, "b", "2"); err != nil {
				t.Fatalf("Set err: %v", err)
			}
			v, err := s.Get(ctx, "a")
			if err != nil || v != "1" {
				t.Fatalf("Get a = %q, %v", v, err)
			}
			keys, err := s.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys err: %v", err)
			}
			sort.Strings(keys)
			if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
				t.Fatalf("Keys = %v", keys)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete err: %v", err)
			}
			if _, err := s.Get(ctx, "a"); !IsNotFound(err) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			// Delete de key ausente no es error
			if err := s.Delete(ctx, "nope"); err != nil {
				t.Fatalf("Delete missing err: %v", err)
			}
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s1, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile err: %v", err)
	}
	if err := s1.Set(ctx, KeyRole, "seller"); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	s2, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile reopen err: %v", err)
	}
	v, err := s2.Get(ctx, KeyRole)
	if err != nil || v != "seller" {
		t.Fatalf("after reopen Get = %q, %v", v, err)
	}
}

func TestFileStore_CorruptedStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("esto no es json {"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile err: %v", err)
	}
	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected empty store, got keys=%v err=%v", keys, err)
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if err := s.Set(context.Background(), "x", "y"); err != nil {
		t.Fatalf("Set err: %v", err)
	}
}
