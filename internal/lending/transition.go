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

// Transition moves a transaction to status to and reconciles stock: an
// approved transaction always holds its quantity, a rejected or returned one
// gives it back. The borrower is notified of the decision.
func (s *Service) Transition(ctx context.Context, transactionID int64, to model.Status) (*model.Transaction, error) {
	t, err := s.transition(ctx, transactionID, to)
	metrics.TransactionTransitions.WithLabelValues(string(to), metrics.Outcome(err)).Inc()
	return t, err
}

func (s *Service) transition(ctx context.Context, transactionID int64, to model.Status) (*model.Transaction, error) {
	if transactionID <= 0 {
		return nil, invalid("transaction id", "must be a positive ID")
	}
	if !to.Valid() {
		return nil, invalid("status", "unknown status")
	}

	var updated *model.Transaction
	var notifications []model.Notification
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := store.GetTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return model.NotFoundf("transaction %d", transactionID)
		}
		if !t.Status.CanTransition(to) {
			return ErrInvalidTransition
		}

		reserved := t.StockReserved
		switch {
		case to == model.StatusApproved && !reserved:
			if err := store.DecrementItemQuantity(ctx, tx, t.ItemID, t.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientQuantity) {
					return ErrInsufficientStock
				}
				return err
			}
			reserved = true
		case to != model.StatusApproved && reserved:
			if err := store.IncrementItemQuantity(ctx, tx, t.ItemID, t.Quantity); err != nil {
				return err
			}
			reserved = false
		}

		ok, err := store.UpdateTransactionStatus(ctx, tx, t.ID, t.Status, to, reserved)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		item, err := store.GetItem(ctx, tx, t.ItemID)
		if err != nil {
			return err
		}
		owner, err := store.GetEmployee(ctx, tx, t.OwnerEmpID)
		if err != nil {
			return err
		}
		if item == nil || owner == nil {
			return model.NotFoundf("transaction %d parties", t.ID)
		}

		msg := notify.DecisionMessage(notify.Parties{
			TransactionID: t.ID,
			Item:          *item,
			Quantity:      t.Quantity,
			Owner:         *owner,
		}, to)
		notifications, err = notify.Persist(ctx, tx,
			[]notify.Recipient{{EmployeeID: t.BorrowerEmpID, Message: msg}}, &t.ID)
		if err != nil {
			return err
		}

		updated, err = store.GetTransaction(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transaction status changed",
		"transaction", updated.ID,
		"status", updated.Status,
		"stock_reserved", updated.StockReserved,
	)

	notify.Deliver(ctx, s.publisher, notifications)
	return updated, nil
}

// SetRemarks sets the remarks flag of a transaction.
func (s *Service) SetRemarks(ctx context.Context, transactionID int64, remarks bool) (*model.Transaction, error) {
	var updated *model.Transaction
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := store.GetTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return model.NotFoundf("transaction %d", transactionID)
		}
		if err := store.SetTransactionRemarks(ctx, tx, t.ID, remarks); err != nil {
			return err
		}
		updated, err = store.GetTransaction(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
