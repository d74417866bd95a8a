package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const itemColumns = `id, property_no, serial_no, ics_no, class_no, description, quantity,
	accountable_emp_id, department_id, COALESCE(image_mime, ''), deleted, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }, item *model.Item) error {
	return row.Scan(&item.ID, &item.PropertyNo, &item.SerialNo, &item.ICSNo, &item.ClassNo,
		&item.Description, &item.Quantity, &item.AccountableEmpID, &item.DepartmentID,
		&item.ImageMime, &item.Deleted, &item.CreatedAt, &item.UpdatedAt)
}

// CreateItem creates a distributed item.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if item.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (property_no, serial_no, ics_no, class_no, description, quantity,
		                    accountable_emp_id, department_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.PropertyNo, item.SerialNo, item.ICSNo, item.ClassNo, item.Description, item.Quantity,
		item.AccountableEmpID, item.DepartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByDepartment returns the non-deleted items held by a department.
// If excludeEmpID is set, items that employee is accountable for are left out.
func ListItemsByDepartment(ctx context.Context, db *sql.DB, departmentID, excludeEmpID int64) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE department_id = ? AND deleted = 0`
	args := []any{departmentID}
	if excludeEmpID > 0 {
		query += ` AND accountable_emp_id != ?`
		args = append(args, excludeEmpID)
	}
	query += ` ORDER BY description, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing department items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListItemsByAccountable returns the non-deleted items an employee is
// accountable for.
func ListItemsByAccountable(ctx context.Context, db *sql.DB, empID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE accountable_emp_id = ? AND deleted = 0
		 ORDER BY description, id`, empID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing employee items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET deleted = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// DecrementItemQuantity takes amount units off an item. The update only
// applies while enough stock remains, so it fails with ErrInsufficientQuantity
// instead of driving the quantity negative.
func DecrementItemQuantity(ctx context.Context, q Querier, itemID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	result, err := q.ExecContext(ctx,
		`UPDATE items SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0 AND quantity >= ?`,
		amount, itemID, amount,
	)
	if err != nil {
		return fmt.Errorf("decrementing item quantity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking decremented rows: %w", err)
	}
	if n == 0 {
		return ErrInsufficientQuantity
	}
	return nil
}

// IncrementItemQuantity puts amount units back on an item.
func IncrementItemQuantity(ctx context.Context, q Querier, itemID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	_, err := q.ExecContext(ctx,
		`UPDATE items SET quantity = quantity + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, itemID,
	)
	if err != nil {
		return fmt.Errorf("incrementing item quantity: %w", err)
	}
	return nil
}

// SetItemImage sets an item's photo.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's photo and its MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
