// Package report renders downloadable spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/izposoja/internal/model"
)

// XLSXContentType is the MIME type of the generated workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const borrowedSheet = "Borrowed items"

var borrowedHeader = []any{"Transaction", "Item", "Description", "Property no.", "Serial no.", "Quantity", "Owner", "Borrowed at"}

// WriteBorrowedItems writes one row per borrowed item, under a header row,
// as an XLSX workbook.
func WriteBorrowedItems(w io.Writer, borrower *model.Employee, items []model.BorrowedItem) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), borrowedSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Borrowed items of " + borrower.DisplayName(),
		Creator: "izposoja",
	}); err != nil {
		return fmt.Errorf("setting properties: %w", err)
	}

	if err := f.SetSheetRow(borrowedSheet, "A1", &borrowedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			it.TransactionID,
			it.ItemID,
			it.Description,
			it.PropertyNo,
			it.SerialNo,
			it.Quantity,
			it.OwnerName,
			it.BorrowedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(borrowedSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(borrowedSheet, "C", "C", 40); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
