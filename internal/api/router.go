package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/metrics"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/notify"
)

// Deps are the collaborators the routes are served from.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Lending   *lending.Service
	Hub       *notify.Hub
	// Publisher pushes notifications created outside the lending service.
	// It defaults to Hub.
	Publisher notify.Publisher
	Metrics   bool
}

// NewRouter creates the router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	if d.Publisher == nil && d.Hub != nil {
		d.Publisher = d.Hub
	}

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	directoryHandler := &DirectoryHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB}
	lendingHandler := &LendingHandler{DB: d.DB, Service: d.Lending}
	notificationsHandler := &NotificationsHandler{
		DB:       d.DB,
		Notifier: &notify.Notifier{DB: d.DB, Publisher: d.Publisher},
		Hub:      d.Hub,
	}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Unauthenticated infrastructure.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Directory.
	mux.Handle("GET /api/borrowers", authMW(http.HandlerFunc(directoryHandler.Borrowers)))
	mux.Handle("GET /api/employees/{id}", authMW(http.HandlerFunc(directoryHandler.Employee)))
	mux.Handle("GET /api/departments", authMW(http.HandlerFunc(directoryHandler.Departments)))

	// Items: read (all roles), photo upload (manager+).
	mux.Handle("GET /api/items/department/{id}", authMW(http.HandlerFunc(itemsHandler.ByDepartment)))
	mux.Handle("GET /api/items/employee/{empId}", authMW(http.HandlerFunc(itemsHandler.ByEmployee)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("DELETE /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Delete))))

	// Photos live outside /api/items/ so they cannot collide with the
	// department and employee listings.
	mux.Handle("PUT /api/photos/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/photos/{id}", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Transactions: submit (all roles, on own behalf), decide (admin).
	mux.Handle("POST /api/borrow", authMW(http.HandlerFunc(lendingHandler.Borrow)))
	mux.Handle("POST /api/lend_transaction", authMW(http.HandlerFunc(lendingHandler.Lend)))
	mux.Handle("GET /api/transactions", authMW(http.HandlerFunc(lendingHandler.ListTransactions)))
	mux.Handle("GET /api/transactions/{id}", authMW(http.HandlerFunc(lendingHandler.GetTransaction)))
	mux.Handle("PUT /api/transactions/{id}/status", authMW(requireAdmin(http.HandlerFunc(lendingHandler.UpdateStatus))))
	mux.Handle("PUT /api/transactions/{id}/remarks", authMW(requireAdmin(http.HandlerFunc(lendingHandler.SetRemarks))))
	mux.Handle("GET /api/borrowed/{empId}", authMW(http.HandlerFunc(lendingHandler.Borrowed)))
	mux.Handle("GET /api/borrowed/{empId}/export", authMW(http.HandlerFunc(lendingHandler.ExportBorrowed)))

	// Notifications.
	mux.Handle("GET /api/notifications/{empId}", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("POST /api/notifications", authMW(requireManager(http.HandlerFunc(notificationsHandler.Create))))
	mux.Handle("PUT /api/notifications/{id}/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))
	mux.Handle("GET /api/ws", authMW(http.HandlerFunc(notificationsHandler.Live)))

	return mux
}
