// Package push implementa el subscriber del canal push (websocket).
// El Notification Store no abre el canal: este paquete recibe los
// eventos y los traduce a llamadas a notify.Add, manteniendo al store
// agnóstico del transporte.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/metrics"
	"github.com/salvacomida/miniapp/internal/observability/logger"
)

// Event es un evento del canal push.
type Event struct {
	Event     string `json:"event"`     // "notification" | "orderCreated" | "orderStatusChanged"
	Type      string `json:"type"`      // "order_created" | "order_status_changed"
	Title     string `json:"title"`
	Message   string `json:"message"`
	OrderID   string `json:"order_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	SellerID  string `json:"seller_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ActionURL string `json:"action_url,omitempty"`
}

// Handler procesa un evento decodificado.
type Handler func(Event)

// subscribeFrame es el primer mensaje que se manda al conectar: el
// server asigna la conexión a la room subscriberType:subscriberID.
type subscribeFrame struct {
	SubscriberType string `json:"subscriber_type"`
	SubscriberID   string `json:"subscriber_id"`
}

// Config configura el Subscriber.
type Config struct {
	// URL del endpoint websocket (ws:// o wss://; http(s) se convierte).
	URL string

	// SubscriberType y SubscriberID identifican la room.
	SubscriberType string
	SubscriberID   string

	// ReconnectMax acota el backoff de reconexión. Default 30s.
	ReconnectMax time.Duration
}

// Subscriber mantiene la conexión al canal y entrega eventos al
// handler. Frames malformados se loguean y descartan.
type Subscriber struct {
	cfg     Config
	handler Handler
	log     *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

// New crea un subscriber. handler no puede ser nil.
func New(cfg Config, handler Handler) *Subscriber {
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Subscriber{
		cfg:     cfg,
		handler: handler,
		log:     logger.Named("push"),
		done:    make(chan struct{}),
	}
}

// wsURL normaliza la URL a ws(s).
func wsURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https"):
		return "wss" + u[len("https"):]
	case strings.HasPrefix(u, "http"):
		return "ws" + u[len("http"):]
	default:
		return u
	}
}

// Dial conecta y manda el frame de suscripción. No arranca el read
// loop: eso es Run.
func (s *Subscriber) Dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL(s.cfg.URL), nil)
	if err != nil {
		return fmt.Errorf("push: dial: %w", err)
	}
	if err := conn.WriteJSON(subscribeFrame{
		SubscriberType: s.cfg.SubscriberType,
		SubscriberID:   s.cfg.SubscriberID,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("push: subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// Run lee eventos hasta que ctx se cancele o Close. Si la conexión se
// cae, reconecta con backoff exponencial acotado.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if conn == nil {
			if err := s.Dial(ctx); err != nil {
				s.log.Warn("reconexión falló", logger.Err(err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-s.done:
					return nil
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > s.cfg.ReconnectMax {
					backoff = s.cfg.ReconnectMax
				}
				continue
			}
			metrics.PushReconnects.Inc()
			backoff = time.Second
			s.mu.Lock()
			conn = s.conn
			s.mu.Unlock()
		}

		if err := s.readLoop(ctx, conn); err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return nil
			default:
			}
			s.log.Warn("conexión push caída", logger.Err(err))
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Heartbeat: ping periódico; el server responde pong.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(25 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Debug("frame push malformado, descartado", logger.Err(err))
			continue
		}
		s.handler(ev)
	}
}

// Close cierra la conexión y termina Run.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	return err
}
