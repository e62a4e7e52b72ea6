// Package metrics define los collectors Prometheus del cliente y del
// devserver. Registrados en el registry por defecto; el devserver los
// expone en /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolverOutcomes cuenta cómo terminó cada resolución de sesión.
	// outcome: dev | no_bridge | registered | unregistered |
	// backend_error | watchdog
	ResolverOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salvacomida",
		Subsystem: "session",
		Name:      "resolver_outcomes_total",
		Help:      "Resultados terminales del resolver de sesión.",
	}, []string{"outcome"})

	// NotificationsIngested cuenta notificaciones agregadas al store.
	NotificationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salvacomida",
		Subsystem: "notify",
		Name:      "ingested_total",
		Help:      "Notificaciones agregadas al store, por tipo.",
	}, []string{"kind"})

	// PushReconnects cuenta reconexiones del canal push.
	PushReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salvacomida",
		Subsystem: "push",
		Name:      "reconnects_total",
		Help:      "Reconexiones del subscriber websocket.",
	})

	// HTTPRequests cuenta requests atendidos por el devserver.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salvacomida",
		Subsystem: "devserver",
		Name:      "http_requests_total",
		Help:      "Requests HTTP atendidos, por método/path/status.",
	}, []string{"method", "path", "status"})
)
