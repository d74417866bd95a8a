package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// CreateDepartment creates a new department.
func CreateDepartment(ctx context.Context, db *sql.DB, name string) (*model.Department, error) {
	result, err := db.ExecContext(ctx, `INSERT INTO departments (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating department: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting department id: %w", err)
	}

	return GetDepartment(ctx, db, id)
}

// GetDepartment returns a department by ID.
func GetDepartment(ctx context.Context, q Querier, id int64) (*model.Department, error) {
	d := &model.Department{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM departments WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return d, nil
}

// ListDepartments returns all departments ordered by name.
func ListDepartments(ctx context.Context, db *sql.DB) ([]model.Department, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	var departments []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}
