// Package lending implements the borrow/lend transaction workflow: request
// validation, stock reconciliation and notification fan-out, applied as one
// database transaction.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/erazemk/izposoja/internal/metrics"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/notify"
	"github.com/erazemk/izposoja/internal/store"
)

// StockPolicy decides when a transaction takes stock off the item.
type StockPolicy string

// Stock policies.
const (
	// StockOnRequest decrements the item quantity when the request is submitted.
	StockOnRequest StockPolicy = "on_request"
	// StockOnApproval only checks availability at submit and decrements when
	// the transaction is approved.
	StockOnApproval StockPolicy = "on_approval"
)

// Valid reports whether p is a known policy.
func (p StockPolicy) Valid() bool {
	return p == StockOnRequest || p == StockOnApproval
}

// Options configures a Service.
type Options struct {
	// AdminEmployeeID receives the approval notification of every request.
	AdminEmployeeID int64
	StockPolicy     StockPolicy
	// BorrowedRequiresRemarks restricts ListBorrowedItems to transactions
	// flagged with remarks.
	BorrowedRequiresRemarks bool
}

// Service runs the transaction workflow.
type Service struct {
	db        *sql.DB
	publisher notify.Publisher
	opts      Options
}

// NewService creates a workflow service. publisher may be nil, in which case
// notifications are only persisted.
func NewService(db *sql.DB, publisher notify.Publisher, opts Options) *Service {
	if opts.StockPolicy == "" {
		opts.StockPolicy = StockOnRequest
	}
	return &Service{db: db, publisher: publisher, opts: opts}
}

// BorrowRequest asks OwnerID to lend Quantity units of ItemID to BorrowerID.
type BorrowRequest struct {
	BorrowerID   int64
	OwnerID      int64
	ItemID       int64
	Quantity     int
	DepartmentID int64
}

// LendRequest offers Quantity units of ItemID held by LenderID to BorrowerID.
type LendRequest struct {
	LenderID     int64
	BorrowerID   int64
	ItemID       int64
	Quantity     int
	DepartmentID int64
}

// Receipt is the result of a successful submission.
type Receipt struct {
	TransactionID int64
	Notifications []model.Notification
}

// submission is the role-neutral form of a borrow or lend request.
type submission struct {
	kind         model.Kind
	borrowerID   int64
	ownerID      int64
	itemID       int64
	quantity     int
	departmentID int64
}

// SubmitBorrow records a pending borrow request and notifies the admin, the
// owner and the borrower.
func (s *Service) SubmitBorrow(ctx context.Context, req BorrowRequest) (*Receipt, error) {
	sub := submission{
		kind:         model.KindBorrow,
		borrowerID:   req.BorrowerID,
		ownerID:      req.OwnerID,
		itemID:       req.ItemID,
		quantity:     req.Quantity,
		departmentID: req.DepartmentID,
	}

	err := validate([]idField{
		{"borrower_emp_id", req.BorrowerID},
		{"owner_emp_id", req.OwnerID},
		{"distributed_item_id", req.ItemID},
		{"department_id", req.DepartmentID},
	}, req.Quantity, "owner_emp_id", req.BorrowerID == req.OwnerID)

	var receipt *Receipt
	if err == nil {
		receipt, err = s.submit(ctx, sub)
	}
	metrics.TransactionsSubmitted.WithLabelValues(string(model.KindBorrow), metrics.Outcome(err)).Inc()
	return receipt, err
}

// SubmitLend records a pending lend offer and notifies the admin, the
// borrower and the lender.
func (s *Service) SubmitLend(ctx context.Context, req LendRequest) (*Receipt, error) {
	sub := submission{
		kind:         model.KindLend,
		borrowerID:   req.BorrowerID,
		ownerID:      req.LenderID,
		itemID:       req.ItemID,
		quantity:     req.Quantity,
		departmentID: req.DepartmentID,
	}

	err := validate([]idField{
		{"emp_id", req.LenderID},
		{"borrowerId", req.BorrowerID},
		{"item_id", req.ItemID},
		{"currentDptId", req.DepartmentID},
	}, req.Quantity, "borrowerId", req.BorrowerID == req.LenderID)

	var receipt *Receipt
	if err == nil {
		receipt, err = s.submit(ctx, sub)
	}
	metrics.TransactionsSubmitted.WithLabelValues(string(model.KindLend), metrics.Outcome(err)).Inc()
	return receipt, err
}

type idField struct {
	name  string
	value int64
}

func validate(ids []idField, quantity int, sameField string, samePerson bool) error {
	for _, id := range ids {
		if id.value <= 0 {
			return invalid(id.name, "must be a positive ID")
		}
	}
	if quantity <= 0 {
		return invalid("quantity", "must be a positive integer")
	}
	if samePerson {
		return invalid(sameField, "borrower and owner must be different employees")
	}
	return nil
}

func (s *Service) submit(ctx context.Context, sub submission) (*Receipt, error) {
	var receipt Receipt
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, sub.itemID)
		if err != nil {
			return err
		}
		if item == nil || item.Deleted {
			return model.NotFoundf("item %d", sub.itemID)
		}
		if item.AccountableEmpID != sub.ownerID {
			return ErrInvalidOwner
		}
		if sub.quantity > item.Quantity {
			return ErrInsufficientStock
		}

		borrower, err := store.GetEmployee(ctx, tx, sub.borrowerID)
		if err != nil {
			return err
		}
		if borrower == nil {
			return model.NotFoundf("employee %d", sub.borrowerID)
		}
		owner, err := store.GetEmployee(ctx, tx, sub.ownerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return model.NotFoundf("employee %d", sub.ownerID)
		}

		reserve := s.opts.StockPolicy == StockOnRequest
		txID, err := store.InsertTransaction(ctx, tx, model.Transaction{
			ItemID:        item.ID,
			BorrowerEmpID: borrower.ID,
			OwnerEmpID:    owner.ID,
			Quantity:      sub.quantity,
			DepartmentID:  sub.departmentID,
			Kind:          sub.kind,
			StockReserved: reserve,
		})
		if err != nil {
			return err
		}

		if reserve {
			if err := store.DecrementItemQuantity(ctx, tx, item.ID, sub.quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientQuantity) {
					return ErrInsufficientStock
				}
				return err
			}
		}

		parties := notify.Parties{
			TransactionID: txID,
			Item:          *item,
			Quantity:      sub.quantity,
			Borrower:      *borrower,
			Owner:         *owner,
		}
		notifications, err := notify.Persist(ctx, tx, s.recipients(sub.kind, parties), &txID)
		if err != nil {
			return err
		}

		receipt = Receipt{TransactionID: txID, Notifications: notifications}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transaction submitted",
		"transaction", receipt.TransactionID,
		"kind", sub.kind,
		"item", sub.itemID,
		"quantity", sub.quantity,
		"borrower", sub.borrowerID,
		"owner", sub.ownerID,
	)

	notify.Deliver(ctx, s.publisher, receipt.Notifications)
	return &receipt, nil
}

// recipients returns the admin, counterpart and requester notifications in
// that order.
func (s *Service) recipients(kind model.Kind, p notify.Parties) []notify.Recipient {
	if kind == model.KindLend {
		admin, borrower, lender := notify.LendMessages(p)
		return []notify.Recipient{
			{EmployeeID: s.opts.AdminEmployeeID, Message: admin},
			{EmployeeID: p.Borrower.ID, Message: borrower},
			{EmployeeID: p.Owner.ID, Message: lender},
		}
	}

	admin, owner, requester := notify.BorrowMessages(p)
	return []notify.Recipient{
		{EmployeeID: s.opts.AdminEmployeeID, Message: admin},
		{EmployeeID: p.Owner.ID, Message: owner},
		{EmployeeID: p.Borrower.ID, Message: requester},
	}
}

// GetTransaction returns a transaction by ID.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := store.GetTransaction(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, model.NotFoundf("transaction %d", id)
	}
	return t, nil
}

// ListBorrowedItems returns the items an employee currently has on approved
// loan.
func (s *Service) ListBorrowedItems(ctx context.Context, borrowerID int64) ([]model.BorrowedItem, error) {
	if borrowerID <= 0 {
		return nil, invalid("employee id", "must be a positive ID")
	}
	return store.ListBorrowedItems(ctx, s.db, borrowerID, s.opts.BorrowedRequiresRemarks)
}
