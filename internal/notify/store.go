package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/kv"
	"github.com/salvacomida/miniapp/internal/metrics"
	"github.com/salvacomida/miniapp/internal/observability/logger"
)

// SystemNotifier levanta una notificación a nivel host (best-effort).
// Un error se loguea y se descarta: nunca bloquea Add.
type SystemNotifier interface {
	Notify(r Record) error
}

// Store es el log de notificaciones. El log en memoria es la única
// fuente de verdad durante la sesión; el kv store es write-through
// (log completo en cada mutación) y solo se lee en la hidratación.
//
// Todas las mutaciones se serializan con un mutex: el patrón
// "leer log, mutar, persistir" no es atómico sin él.
type Store struct {
	kv       kv.Store
	notifier SystemNotifier
	log      *zap.Logger

	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// Option configura el Store.
type Option func(*Store)

// WithSystemNotifier instala el notificador host-level.
func WithSystemNotifier(n SystemNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

// withClock fija el reloj (tests).
func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New crea el store y lo hidrata del kv. Un log persistido que no
// parsea se descarta y la key corrupta se borra para no fallar de
// nuevo en el próximo arranque.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:  store,
		log: logger.Named("notify"),
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	ctx := context.Background()
	raw, err := store.Get(ctx, kv.KeyNotifyLog)
	if err == nil && raw != "" {
		var recs []Record
		if jerr := json.Unmarshal([]byte(raw), &recs); jerr != nil {
			s.log.Warn("log de notificaciones corrupto, descartando",
				logger.Key(kv.KeyNotifyLog), logger.Err(jerr))
			_ = store.Delete(ctx, kv.KeyNotifyLog)
		} else {
			s.records = recs
		}
	}
	return s
}

// Add estampa id/timestamp, prepende el record (más reciente primero)
// y persiste. Si hay SystemNotifier instalado también levanta la
// notificación host, best-effort.
func (s *Store) Add(in Input) Record {
	s.mu.Lock()
	now := s.now()
	rec := Record{
		ID:        newID(now),
		Kind:      in.Kind,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: now,
		OrderID:   in.OrderID,
		ProductID: in.ProductID,
		SellerID:  in.SellerID,
		UserID:    in.UserID,
		ActionURL: in.ActionURL,
	}
	s.records = append([]Record{rec}, s.records...)
	s.persistLocked()
	s.mu.Unlock()

	metrics.NotificationsIngested.WithLabelValues(string(rec.Kind)).Inc()

	if s.notifier != nil {
		if err := s.notifier.Notify(rec); err != nil {
			s.log.Debug("notificación host falló (ignorada)",
				logger.NotifID(rec.ID), logger.Err(err))
		}
	}
	return rec
}

// MarkRead marca un record como leído. No-op si el id no existe.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].IsRead = true
			s.persistLocked()
			return
		}
	}
}

// MarkAllRead marca como leídos los records de la vista filtrada de
// ident (no el log entero).
func (s *Store) MarkAllRead(ident Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for i := range s.records {
		if !s.records[i].IsRead && visible(s.records[i], ident) {
			s.records[i].IsRead = true
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}
}

// Remove borra un record del log.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.persistLocked()
			return
		}
	}
}

// Clear vacía el log completo (no solo la vista filtrada) y borra la
// key persistida.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	if err := s.kv.Delete(context.Background(), kv.KeyNotifyLog); err != nil {
		s.log.Warn("no se pudo borrar log persistido", logger.Err(err))
	}
}

// View retorna la vista filtrada para ident, recomputada en cada
// lectura sobre el log completo: no existe una copia almacenada de la
// vista, así no hay drift que sincronizar.
func (s *Store) View(ident Identity) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if visible(r, ident) {
			out = append(out, r)
		}
	}
	return out
}

// UnreadCount cuenta los no leídos de la vista filtrada.
func (s *Store) UnreadCount(ident Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if !r.IsRead && visible(r, ident) {
			n++
		}
	}
	return n
}

// Len retorna el tamaño del log completo (sin filtrar).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// persistLocked escribe el log completo al kv. Caller debe tener el
// lock. Una falla de persistencia se loguea pero no se propaga: el
// estado en memoria ya es el último conocido.
func (s *Store) persistLocked() {
	b, err := json.Marshal(s.records)
	if err != nil {
		s.log.Warn("no se pudo serializar log", logger.Err(err))
		return
	}
	if err := s.kv.Set(context.Background(), kv.KeyNotifyLog, string(b)); err != nil {
		s.log.Warn("no se pudo persistir log", logger.Err(err))
	}
}
