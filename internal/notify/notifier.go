package notify

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Notifier reads and writes an employee's notification inbox.
type Notifier struct {
	DB        *sql.DB
	Publisher Publisher
}

// Notify stores one notification per recipient in a single transaction and
// then pushes them live.
func (n *Notifier) Notify(ctx context.Context, recipients []Recipient, transactionID *int64) ([]model.Notification, error) {
	var stored []model.Notification
	err := store.WithTx(ctx, n.DB, func(tx *sql.Tx) error {
		var err error
		stored, err = Persist(ctx, tx, recipients, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	Deliver(ctx, n.Publisher, stored)
	return stored, nil
}

// List returns an employee's notifications; see store.ListNotifications for
// the ordering.
func (n *Notifier) List(ctx context.Context, empID int64, includeRead bool) ([]model.Notification, error) {
	if empID <= 0 {
		return nil, &model.ValidationError{Field: "employee id", Reason: "must be positive"}
	}
	return store.ListNotifications(ctx, n.DB, empID, includeRead)
}

// MarkRead flags a notification as read. It is idempotent.
func (n *Notifier) MarkRead(ctx context.Context, id int64) error {
	found, err := store.MarkNotificationRead(ctx, n.DB, id)
	if err != nil {
		return err
	}
	if !found {
		return model.NotFoundf("notification %d", id)
	}
	slog.Debug("notification marked read", "notification", id)
	return nil
}
