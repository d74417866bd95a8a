package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// DirectoryHandler serves employee and department lookups.
type DirectoryHandler struct {
	DB *sql.DB
}

// searchField maps the search_type parameter. "ID Number" is what existing
// clients send.
func searchField(searchType string) store.SearchField {
	switch strings.ToLower(strings.TrimSpace(searchType)) {
	case "id number", "id_number":
		return store.SearchByIDNumber
	}
	return store.SearchByName
}

// Borrowers handles GET /api/borrowers.
func (h *DirectoryHandler) Borrowers(w http.ResponseWriter, r *http.Request) {
	deptID, ok := queryID(r, "department_id")
	if !ok || deptID == 0 {
		jsonError(w, http.StatusBadRequest, "department_id required")
		return
	}
	excludeID, ok := queryID(r, "exclude_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid exclude_id")
		return
	}

	q := r.URL.Query()
	employees, err := store.SearchEmployees(r.Context(), h.DB, store.EmployeeSearch{
		DepartmentID: deptID,
		ExcludeID:    excludeID,
		Query:        strings.TrimSpace(q.Get("query")),
		Field:        searchField(q.Get("search_type")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	jsonResponse(w, http.StatusOK, employees)
}

// Employee handles GET /api/employees/{id}.
func (h *DirectoryHandler) Employee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	emp, err := store.GetEmployee(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if emp == nil {
		jsonError(w, http.StatusNotFound, "employee not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"employee":     emp,
		"display_name": emp.DisplayName(),
	})
}

// Departments handles GET /api/departments.
func (h *DirectoryHandler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := store.ListDepartments(r.Context(), h.DB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if departments == nil {
		departments = []model.Department{}
	}
	jsonResponse(w, http.StatusOK, departments)
}
