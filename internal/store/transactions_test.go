package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

func TestInsertAndGetTransaction(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := seedDirectory(t, database)

	id := insertBorrow(t, database, f, 2)

	got, err := GetTransaction(ctx, database, id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Kind != model.KindBorrow || got.Quantity != 2 || got.OwnerEmpID != f.owner.ID {
		t.Errorf("unexpected transaction %+v", got)
	}

	n, _ := CountTransactions(ctx, database)
	if n != 1 {
		t.Errorf("expected 1 transaction, got %d", n)
	}
}

func TestInsertTransactionRejectsSameParty(t *testing.T) {
	database := db.NewTestDB(t)
	f := seedDirectory(t, database)

	_, err := InsertTransaction(context.Background(), database, model.Transaction{
		ItemID: f.item.ID, BorrowerEmpID: f.owner.ID, OwnerEmpID: f.owner.ID,
		Quantity: 1, DepartmentID: f.dept.ID, Kind: model.KindBorrow,
	})
	if err == nil {
		t.Error("expected borrower == owner to be rejected")
	}
}

func TestUpdateTransactionStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := seedDirectory(t, database)
	id := insertBorrow(t, database, f, 1)

	ok, err := UpdateTransactionStatus(ctx, database, id, model.StatusPending, model.StatusApproved, true)
	if err != nil || !ok {
		t.Fatalf("UpdateTransactionStatus: ok=%v err=%v", ok, err)
	}

	// Stale from status does not apply.
	ok, err = UpdateTransactionStatus(ctx, database, id, model.StatusPending, model.StatusRejected, false)
	if err != nil {
		t.Fatalf("UpdateTransactionStatus: %v", err)
	}
	if ok {
		t.Error("expected update from stale status to be skipped")
	}

	got, _ := GetTransaction(ctx, database, id)
	if got.Status != model.StatusApproved || !got.StockReserved {
		t.Errorf("expected approved and reserved, got %s reserved=%v", got.Status, got.StockReserved)
	}
}

func TestListTransactions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := seedDirectory(t, database)

	first := insertBorrow(t, database, f, 1)
	second := insertBorrow(t, database, f, 2)

	all, _ := ListTransactions(ctx, database, 0, 0)
	if len(all) != 2 || all[0].ID != second || all[1].ID != first {
		t.Errorf("expected newest first, got %+v", all)
	}

	forOwner, _ := ListTransactions(ctx, database, f.item.ID, f.owner.ID)
	if len(forOwner) != 2 {
		t.Errorf("expected owner to see 2 transactions, got %d", len(forOwner))
	}

	forAdmin, _ := ListTransactions(ctx, database, 0, f.admin.ID)
	if len(forAdmin) != 0 {
		t.Errorf("expected no transactions for admin, got %d", len(forAdmin))
	}
}

func TestListBorrowedItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := seedDirectory(t, database)

	insertBorrow(t, database, f, 1) // stays pending
	approved := insertBorrow(t, database, f, 2)
	UpdateTransactionStatus(ctx, database, approved, model.StatusPending, model.StatusApproved, true)

	items, err := ListBorrowedItems(ctx, database, f.borrower.ID, false)
	if err != nil {
		t.Fatalf("ListBorrowedItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 borrowed item, got %d", len(items))
	}
	b := items[0]
	if b.TransactionID != approved || b.Quantity != 2 || b.OwnerName != "Marko Kranjc" || b.Description != "Projector" {
		t.Errorf("unexpected borrowed item %+v", b)
	}

	flagged, _ := ListBorrowedItems(ctx, database, f.borrower.ID, true)
	if len(flagged) != 0 {
		t.Errorf("expected no flagged items, got %d", len(flagged))
	}

	if err := SetTransactionRemarks(ctx, database, approved, true); err != nil {
		t.Fatalf("SetTransactionRemarks: %v", err)
	}
	flagged, _ = ListBorrowedItems(ctx, database, f.borrower.ID, true)
	if len(flagged) != 1 {
		t.Errorf("expected 1 flagged item, got %d", len(flagged))
	}
}
