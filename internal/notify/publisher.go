// Package notify fans transaction events out to employees: it persists
// notification rows and pushes them to connected clients.
package notify

import (
	"context"
	"log/slog"

	"github.com/erazemk/izposoja/internal/metrics"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// EventNewNotification is the live event name clients listen for.
const EventNewNotification = "newNotification"

// Event is the frame written to live clients.
type Event struct {
	Event string             `json:"event"`
	Data  model.Notification `json:"data"`
}

// Publisher pushes a stored notification to its recipient's live sessions.
// Publish must not block on slow clients.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Recipient is one addressee of a fan-out.
type Recipient struct {
	EmployeeID int64
	Message    string
}

// Persist stores one unread notification per recipient using q. Callers pass
// the transaction that created the event so that the whole batch commits or
// rolls back with it.
func Persist(ctx context.Context, q store.Querier, recipients []Recipient, transactionID *int64) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(recipients))
	for _, r := range recipients {
		n, err := store.InsertNotification(ctx, q, r.EmployeeID, r.Message, transactionID)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

// Deliver pushes already stored notifications. Push failures are logged and
// counted; they never undo the stored rows.
func Deliver(ctx context.Context, pub Publisher, notifications []model.Notification) {
	if pub == nil {
		return
	}
	for _, n := range notifications {
		if err := pub.Publish(ctx, n); err != nil {
			metrics.NotificationPushes.WithLabelValues("failed").Inc()
			slog.Warn("notification push failed",
				"notification", n.ID, "recipient", n.RecipientEmpID, "error", err)
		}
	}
}
