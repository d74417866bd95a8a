package model

import "time"

// Status is the lifecycle state of a lending transaction.
type Status string

// Transaction statuses.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReturned Status = "returned"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// CanTransition reports whether a transaction may move from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusReturned || next == StatusRejected
	}
	return false
}

// Kind distinguishes who initiated a transaction.
type Kind string

// Transaction kinds.
const (
	KindBorrow Kind = "borrow"
	KindLend   Kind = "lend"
)

// Transaction is a single borrow or lend request for a quantity of an item.
type Transaction struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"item_id"`
	BorrowerEmpID int64     `json:"borrower_emp_id"`
	OwnerEmpID    int64     `json:"owner_emp_id"`
	Quantity      int       `json:"quantity"`
	DepartmentID  int64     `json:"department_id"`
	Kind          Kind      `json:"kind"`
	Status        Status    `json:"status"`
	Remarks       bool      `json:"remarks"`
	StockReserved bool      `json:"stock_reserved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BorrowedItem is an approved transaction joined with item and owner display
// fields.
type BorrowedItem struct {
	TransactionID int64     `json:"transaction_id"`
	ItemID        int64     `json:"item_id"`
	Description   string    `json:"description"`
	PropertyNo    string    `json:"property_no,omitempty"`
	SerialNo      string    `json:"serial_no,omitempty"`
	Quantity      int       `json:"quantity"`
	OwnerEmpID    int64     `json:"owner_emp_id"`
	OwnerName     string    `json:"owner_name"`
	BorrowedAt    time.Time `json:"borrowed_at"`
}
