package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
)

// SearchField selects the column a borrower search matches against.
type SearchField string

// Search fields.
const (
	SearchByName     SearchField = "name"
	SearchByIDNumber SearchField = "id_number"
)

// EmployeeSearch filters employees of one department.
type EmployeeSearch struct {
	DepartmentID int64
	ExcludeID    int64
	Query        string
	Field        SearchField
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const employeeColumns = `id, id_number, first_name, middle_name, last_name, suffix,
	COALESCE(department_id, 0), created_at`

func scanEmployee(row interface{ Scan(...any) error }, e *model.Employee) error {
	return row.Scan(&e.ID, &e.IDNumber, &e.FirstName, &e.MiddleName, &e.LastName, &e.Suffix,
		&e.DepartmentID, &e.CreatedAt)
}

// CreateEmployee inserts a directory entry.
func CreateEmployee(ctx context.Context, db *sql.DB, e model.Employee) (*model.Employee, error) {
	var dept any
	if e.DepartmentID > 0 {
		dept = e.DepartmentID
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO employees (id_number, first_name, middle_name, last_name, suffix, department_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.IDNumber, e.FirstName, e.MiddleName, e.LastName, e.Suffix, dept,
	)
	if err != nil {
		return nil, fmt.Errorf("creating employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting employee id: %w", err)
	}

	return GetEmployee(ctx, db, id)
}

// GetEmployee returns an employee by ID.
func GetEmployee(ctx context.Context, q Querier, id int64) (*model.Employee, error) {
	e := &model.Employee{}
	err := scanEmployee(q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id,
	), e)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return e, nil
}

// SearchEmployees returns the employees of a department, optionally excluding
// one employee and filtering by a substring of the name or ID number. An empty
// query matches everyone.
func SearchEmployees(ctx context.Context, db *sql.DB, s EmployeeSearch) ([]model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE department_id = ?`
	args := []any{s.DepartmentID}

	if s.ExcludeID > 0 {
		query += ` AND id != ?`
		args = append(args, s.ExcludeID)
	}

	if s.Query != "" {
		if s.Field == SearchByIDNumber {
			query += ` AND id_number LIKE ? ESCAPE '\'`
		} else {
			query += ` AND (first_name || ' ' || last_name) LIKE ? ESCAPE '\'`
		}
		args = append(args, "%"+likeEscaper.Replace(s.Query)+"%")
	}

	query += ` ORDER BY last_name, first_name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := scanEmployee(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}
