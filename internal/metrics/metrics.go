// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/izposoja/internal/model"
)

var (
	// TransactionsSubmitted counts borrow/lend submissions by kind and outcome.
	TransactionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "izposoja",
		Name:      "transactions_submitted_total",
		Help:      "Borrow and lend submissions by kind and outcome.",
	}, []string{"kind", "outcome"})

	// TransactionTransitions counts status changes by target status and outcome.
	TransactionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "izposoja",
		Name:      "transaction_transitions_total",
		Help:      "Transaction status changes by target status and outcome.",
	}, []string{"status", "outcome"})

	// NotificationPushes counts live notification deliveries by result.
	NotificationPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "izposoja",
		Name:      "notification_pushes_total",
		Help:      "Live notification pushes by result (delivered, offline, dropped, failed).",
	}, []string{"result"})

	// WebSocketSessions is the number of open live notification sessions.
	WebSocketSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "izposoja",
		Name:      "websocket_sessions",
		Help:      "Open WebSocket notification sessions.",
	})
)

// Outcome classifies an operation error for use as a metric label.
func Outcome(err error) string {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrBusinessRule):
		return "rejected"
	default:
		return "error"
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
