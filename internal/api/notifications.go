package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/notify"
	"github.com/erazemk/izposoja/internal/store"
)

// NotificationsHandler serves the notification inbox and its live channel.
type NotificationsHandler struct {
	DB       *sql.DB
	Notifier *notify.Notifier
	Hub      *notify.Hub
}

// List handles GET /api/notifications/{empId}. Only unread notifications are
// returned unless includeRead is true.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	empID, ok := pathID(r, "empId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
		return
	}
	if !canActAs(GetClaims(r.Context()), empID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	includeRead := false
	if raw := r.URL.Query().Get("includeRead"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid includeRead")
			return
		}
		includeRead = v
	}

	notifications, err := h.Notifier.List(r.Context(), empID, includeRead)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notifications)
}

type createNotificationRequest struct {
	RecipientEmpID int64  `json:"recipient_emp_id" validate:"required,gt=0"`
	Message        string `json:"message" validate:"required,max=1000"`
	TransactionID  *int64 `json:"transaction_id" validate:"omitempty,gt=0"`
}

// Create handles POST /api/notifications. The notification is stored and
// pushed to the recipient's open sessions.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	emp, err := store.GetEmployee(r.Context(), h.DB, req.RecipientEmpID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if emp == nil {
		jsonError(w, http.StatusNotFound, "recipient not found")
		return
	}
	if req.TransactionID != nil {
		txn, err := store.GetTransaction(r.Context(), h.DB, *req.TransactionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if txn == nil {
			jsonError(w, http.StatusNotFound, "transaction not found")
			return
		}
	}

	created, err := h.Notifier.Notify(r.Context(), []notify.Recipient{
		{EmployeeID: req.RecipientEmpID, Message: req.Message},
	}, req.TransactionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created[0])
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	n, err := store.GetNotification(r.Context(), h.DB, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Someone else's notification is reported the same as a missing one.
	if n == nil || !canActAs(GetClaims(r.Context()), n.RecipientEmpID) {
		jsonError(w, http.StatusNotFound, "notification not found")
		return
	}

	if err := h.Notifier.MarkRead(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}

// Live handles GET /api/ws. The session joins the room of the caller's
// employee and receives newNotification events.
func (h *NotificationsHandler) Live(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil || claims.EmployeeID == 0 {
		jsonError(w, http.StatusForbidden, "account is not linked to an employee")
		return
	}
	h.Hub.ServeWS(w, r, claims.EmployeeID)
}
