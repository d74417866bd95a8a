package model

import (
	"strings"
	"time"
)

// Employee is a directory entry. Employees are the parties of every lending
// transaction and the recipients of notifications.
type Employee struct {
	ID           int64     `json:"id"`
	IDNumber     string    `json:"id_number"`
	FirstName    string    `json:"first_name"`
	MiddleName   string    `json:"middle_name,omitempty"`
	LastName     string    `json:"last_name"`
	Suffix       string    `json:"suffix,omitempty"`
	DepartmentID int64     `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName joins the non-empty name parts.
func (e *Employee) DisplayName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.FirstName, e.MiddleName, e.LastName, e.Suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Department groups employees and the items they hold.
type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
