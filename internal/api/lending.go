package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/report"
	"github.com/erazemk/izposoja/internal/store"
)

// LendingHandler exposes the transaction workflow.
type LendingHandler struct {
	DB      *sql.DB
	Service *lending.Service
}

type borrowRequest struct {
	BorrowerEmpID     int64 `json:"borrower_emp_id" validate:"required,gt=0"`
	OwnerEmpID        int64 `json:"owner_emp_id" validate:"required,gt=0,nefield=BorrowerEmpID"`
	DistributedItemID int64 `json:"distributed_item_id" validate:"required,gt=0"`
	Quantity          int   `json:"quantity" validate:"required,gt=0"`
	DepartmentID      int64 `json:"department_id" validate:"required,gt=0"`
}

type lendRequest struct {
	EmpID        int64 `json:"emp_id" validate:"required,gt=0"`
	ItemID       int64 `json:"item_id" validate:"required,gt=0"`
	Quantity     int   `json:"quantity" validate:"required,gt=0"`
	BorrowerID   int64 `json:"borrowerId" validate:"required,gt=0,nefield=EmpID"`
	CurrentDptID int64 `json:"currentDptId" validate:"required,gt=0"`
}

type submitResponse struct {
	TransactionID int64 `json:"transactionId"`
}

type statusRequest struct {
	Status model.Status `json:"status" validate:"required,oneof=pending approved rejected returned"`
}

type remarksRequest struct {
	Remarks *bool `json:"remarks" validate:"required"`
}

// Borrow handles POST /api/borrow.
func (h *LendingHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if !canActAs(GetClaims(r.Context()), req.BorrowerEmpID) {
		jsonError(w, http.StatusForbidden, "cannot borrow on behalf of another employee")
		return
	}

	receipt, err := h.Service.SubmitBorrow(r.Context(), lending.BorrowRequest{
		BorrowerID:   req.BorrowerEmpID,
		OwnerID:      req.OwnerEmpID,
		ItemID:       req.DistributedItemID,
		Quantity:     req.Quantity,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, submitResponse{TransactionID: receipt.TransactionID})
}

// Lend handles POST /api/lend_transaction.
func (h *LendingHandler) Lend(w http.ResponseWriter, r *http.Request) {
	var req lendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if !canActAs(GetClaims(r.Context()), req.EmpID) {
		jsonError(w, http.StatusForbidden, "cannot lend on behalf of another employee")
		return
	}

	receipt, err := h.Service.SubmitLend(r.Context(), lending.LendRequest{
		LenderID:     req.EmpID,
		BorrowerID:   req.BorrowerID,
		ItemID:       req.ItemID,
		Quantity:     req.Quantity,
		DepartmentID: req.CurrentDptID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, submitResponse{TransactionID: receipt.TransactionID})
}

// ListTransactions handles GET /api/transactions. Users other than managers
// only see transactions they are a party of.
func (h *LendingHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	itemID, ok := queryID(r, "item_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item_id")
		return
	}
	empID, ok := queryID(r, "emp_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid emp_id")
		return
	}

	claims := GetClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleManager) {
		if claims.EmployeeID == 0 || (empID != 0 && empID != claims.EmployeeID) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		empID = claims.EmployeeID
	}

	transactions, err := store.ListTransactions(r.Context(), h.DB, itemID, empID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	jsonResponse(w, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/transactions/{id}.
func (h *LendingHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	t, err := h.Service.GetTransaction(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	if !canActAs(claims, t.BorrowerEmpID) && !canActAs(claims, t.OwnerEmpID) {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// UpdateStatus handles PUT /api/transactions/{id}/status.
func (h *LendingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	t, err := h.Service.Transition(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// SetRemarks handles PUT /api/transactions/{id}/remarks.
func (h *LendingHandler) SetRemarks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req remarksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	t, err := h.Service.SetRemarks(r.Context(), id, *req.Remarks)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Borrowed handles GET /api/borrowed/{empId}.
func (h *LendingHandler) Borrowed(w http.ResponseWriter, r *http.Request) {
	empID, ok := pathID(r, "empId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
		return
	}
	if !canActAs(GetClaims(r.Context()), empID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	items, err := h.Service.ListBorrowedItems(r.Context(), empID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.BorrowedItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// ExportBorrowed handles GET /api/borrowed/{empId}/export.
func (h *LendingHandler) ExportBorrowed(w http.ResponseWriter, r *http.Request) {
	empID, ok := pathID(r, "empId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
		return
	}
	if !canActAs(GetClaims(r.Context()), empID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	emp, err := store.GetEmployee(r.Context(), h.DB, empID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if emp == nil {
		jsonError(w, http.StatusNotFound, "employee not found")
		return
	}

	items, err := h.Service.ListBorrowedItems(r.Context(), empID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Render fully before writing so a failure can still produce an error response.
	var buf bytes.Buffer
	if err := report.WriteBorrowedItems(&buf, emp, items); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="borrowed-%d.xlsx"`, empID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
