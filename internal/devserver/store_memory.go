package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore guarda todo en mapas protegidos por mutex. Es el driver
// por defecto del stub.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User // telegram_id -> user
	nextID   int64
	products map[string]*Product
	orders   map[string]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		nextID:   1,
		products: make(map[string]*Product),
		orders:   make(map[string]*Order),
	}
}

func (s *MemoryStore) UserByTelegramID(_ context.Context, telegramID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	}
	cp := *u
	s.users[u.TelegramID] = &cp
	return nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = "available"
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) ProductByID(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) OrdersBySeller(_ context.Context, sellerID int64) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if o.SellerID == sellerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() {}
