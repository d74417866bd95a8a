package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/photo"
	"github.com/erazemk/izposoja/internal/store"
)

// ItemsHandler serves the inventory catalog.
type ItemsHandler struct {
	DB *sql.DB
}

// ByDepartment handles GET /api/items/department/{id}. The optional
// exclude_emp parameter leaves out the items that employee holds, so a
// borrower does not see their own items.
func (h *ItemsHandler) ByDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid department id")
		return
	}
	excludeID, ok := queryID(r, "exclude_emp")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid exclude_emp")
		return
	}

	items, err := store.ListItemsByDepartment(r.Context(), h.DB, deptID, excludeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// ByEmployee handles GET /api/items/employee/{empId}.
func (h *ItemsHandler) ByEmployee(w http.ResponseWriter, r *http.Request) {
	empID, ok := pathID(r, "empId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
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

	items, err := store.ListItemsByAccountable(r.Context(), h.DB, empID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if item == nil || item.Deleted {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Items are soft-deleted so past
// transactions keep their references.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if item == nil || item.Deleted {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("item deleted", "item_id", id, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/photos/{id}.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if item == nil || item.Deleted {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// Leave headroom for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(photo.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	p, err := photo.Normalize(file)
	if err != nil {
		if errors.Is(err, photo.ErrUnsupported) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, or WebP")
			return
		}
		jsonError(w, http.StatusBadRequest, "could not process image")
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, p.Data, photo.MIME); err != nil {
		writeServiceError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item photo updated", "user", claims.Username, "item", id, "width", p.Width, "height", p.Height)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "image uploaded", "width": p.Width, "height": p.Height})
}

// GetImage handles GET /api/photos/{id}. With ?size=thumb a small
// version is rendered.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	if r.URL.Query().Get("size") == "thumb" {
		thumb, err := photo.Thumbnail(data)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data, mime = thumb.Data, photo.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
