package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/izposoja/internal/model"
)

type directory struct {
	dept     *model.Department
	admin    *model.Employee
	borrower *model.Employee
	owner    *model.Employee
	item     *model.Item
}

// seedDirectory creates one department with three employees and an item of
// quantity 5 held by the owner.
func seedDirectory(t *testing.T, database *sql.DB) directory {
	t.Helper()
	ctx := context.Background()

	dept, err := CreateDepartment(ctx, database, "Facilities")
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}

	emp := func(idNumber, first, last string) *model.Employee {
		e, err := CreateEmployee(ctx, database, model.Employee{
			IDNumber: idNumber, FirstName: first, LastName: last, DepartmentID: dept.ID,
		})
		if err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}
		return e
	}

	f := directory{
		dept:     dept,
		admin:    emp("ADM-1", "Ada", "Admin"),
		borrower: emp("EMP-3", "Ana", "Novak"),
		owner:    emp("EMP-7", "Marko", "Kranjc"),
	}

	f.item, err = CreateItem(ctx, database, model.Item{
		PropertyNo: "PN-0042", Description: "Projector", Quantity: 5,
		AccountableEmpID: f.owner.ID, DepartmentID: dept.ID,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return f
}

// insertBorrow records a pending borrow of the fixture item.
func insertBorrow(t *testing.T, database *sql.DB, f directory, quantity int) int64 {
	t.Helper()

	id, err := InsertTransaction(context.Background(), database, model.Transaction{
		ItemID:        f.item.ID,
		BorrowerEmpID: f.borrower.ID,
		OwnerEmpID:    f.owner.ID,
		Quantity:      quantity,
		DepartmentID:  f.dept.ID,
		Kind:          model.KindBorrow,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return id
}
