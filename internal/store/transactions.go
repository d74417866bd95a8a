package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const transactionColumns = `id, item_id, borrower_emp_id, owner_emp_id, quantity, department_id,
	kind, status, remarks, stock_reserved, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }, t *model.Transaction) error {
	return row.Scan(&t.ID, &t.ItemID, &t.BorrowerEmpID, &t.OwnerEmpID, &t.Quantity, &t.DepartmentID,
		&t.Kind, &t.Status, &t.Remarks, &t.StockReserved, &t.CreatedAt, &t.UpdatedAt)
}

// InsertTransaction records a new transaction in the pending state and
// returns its ID.
func InsertTransaction(ctx context.Context, q Querier, t model.Transaction) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO transactions (item_id, borrower_emp_id, owner_emp_id, quantity, department_id,
		                           kind, status, stock_reserved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ItemID, t.BorrowerEmpID, t.OwnerEmpID, t.Quantity, t.DepartmentID,
		t.Kind, model.StatusPending, t.StockReserved,
	)
	if err != nil {
		return 0, fmt.Errorf("recording transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting transaction id: %w", err)
	}
	return id, nil
}

// GetTransaction returns a transaction by ID.
func GetTransaction(ctx context.Context, q Querier, id int64) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id,
	), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions, optionally filtered by item or by an
// employee appearing on either side.
func ListTransactions(ctx context.Context, db *sql.DB, itemID, empID int64) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any

	if itemID > 0 {
		query += ` AND item_id = ?`
		args = append(args, itemID)
	}
	if empID > 0 {
		query += ` AND (borrower_emp_id = ? OR owner_emp_id = ?)`
		args = append(args, empID, empID)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// UpdateTransactionStatus sets a transaction's status and stock reservation
// flag. The update only applies if the transaction is still in status from,
// so a concurrent transition is reported as zero updated rows (false).
func UpdateTransactionStatus(ctx context.Context, q Querier, id int64, from, to model.Status, stockReserved bool) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE transactions SET status = ?, stock_reserved = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		to, stockReserved, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating transaction status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated rows: %w", err)
	}
	return n > 0, nil
}

// SetTransactionRemarks sets the remarks flag on a transaction.
func SetTransactionRemarks(ctx context.Context, q Querier, id int64, remarks bool) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions SET remarks = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		remarks, id,
	)
	if err != nil {
		return fmt.Errorf("setting transaction remarks: %w", err)
	}
	return nil
}

// ListBorrowedItems returns the approved transactions of a borrower joined
// with item and owner details. If requireRemarks is set, only transactions
// flagged with remarks are included.
func ListBorrowedItems(ctx context.Context, db *sql.DB, borrowerID int64, requireRemarks bool) ([]model.BorrowedItem, error) {
	query := `SELECT t.id, t.item_id, i.description, i.property_no, i.serial_no, t.quantity,
	                 t.owner_emp_id, o.first_name, o.middle_name, o.last_name, o.suffix, t.created_at
	          FROM transactions t
	          JOIN items i ON i.id = t.item_id
	          JOIN employees o ON o.id = t.owner_emp_id
	          WHERE t.borrower_emp_id = ? AND t.status = ?`
	args := []any{borrowerID, model.StatusApproved}

	if requireRemarks {
		query += ` AND t.remarks = 1`
	}

	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrowed items: %w", err)
	}
	defer rows.Close()

	var items []model.BorrowedItem
	for rows.Next() {
		var b model.BorrowedItem
		var owner model.Employee
		if err := rows.Scan(&b.TransactionID, &b.ItemID, &b.Description, &b.PropertyNo, &b.SerialNo, &b.Quantity,
			&b.OwnerEmpID, &owner.FirstName, &owner.MiddleName, &owner.LastName, &owner.Suffix, &b.BorrowedAt); err != nil {
			return nil, fmt.Errorf("scanning borrowed item: %w", err)
		}
		b.OwnerName = owner.DisplayName()
		items = append(items, b)
	}
	return items, rows.Err()
}

// CountTransactions returns the number of recorded transactions.
func CountTransactions(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}
