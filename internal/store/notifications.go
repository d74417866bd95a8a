package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const notificationColumns = `id, message, recipient_emp_id, transaction_id, read, created_at, updated_at`

func scanNotification(row interface{ Scan(...any) error }, n *model.Notification) error {
	var txID sql.NullInt64
	if err := row.Scan(&n.ID, &n.Message, &n.RecipientEmpID, &txID, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return err
	}
	if txID.Valid {
		id := txID.Int64
		n.TransactionID = &id
	}
	return nil
}

// InsertNotification stores an unread notification and returns it as stored.
func InsertNotification(ctx context.Context, q Querier, recipientEmpID int64, message string, transactionID *int64) (*model.Notification, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (message, recipient_emp_id, transaction_id) VALUES (?, ?, ?)`,
		message, recipientEmpID, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}

	n, err := GetNotification(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("notification %d vanished after insert", id)
	}
	return n, nil
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, q Querier, id int64) (*model.Notification, error) {
	n := &model.Notification{}
	err := scanNotification(q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id,
	), n)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns an employee's notifications. By default only
// unread ones are returned, newest first. With includeRead, read ones are
// included after all unread ones, each group newest first.
func ListNotifications(ctx context.Context, q Querier, empID int64, includeRead bool) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_emp_id = ?`
	if includeRead {
		query += ` ORDER BY read ASC, created_at DESC, id DESC`
	} else {
		query += ` AND read = 0 ORDER BY created_at DESC, id DESC`
	}

	rows, err := q.QueryContext(ctx, query, empID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// ListTransactionNotifications returns the notifications linked to a
// transaction in insertion order.
func ListTransactionNotifications(ctx context.Context, q Querier, transactionID int64) ([]model.Notification, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE transaction_id = ? ORDER BY id`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transaction notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags a notification as read. Marking an already read
// notification changes nothing. It reports false if the ID does not exist.
func MarkNotificationRead(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications
		 SET updated_at = CASE WHEN read = 0 THEN CURRENT_TIMESTAMP ELSE updated_at END,
		     read = 1
		 WHERE id = ?`, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated rows: %w", err)
	}
	return n > 0, nil
}
