package model

import "time"

// Notification is a message addressed to one employee.
type Notification struct {
	ID             int64     `json:"id"`
	Message        string    `json:"message"`
	RecipientEmpID int64     `json:"recipient_emp_id"`
	TransactionID  *int64    `json:"transaction_id,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
