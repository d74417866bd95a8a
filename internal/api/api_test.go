package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/notify"
	"github.com/erazemk/izposoja/internal/report"
	"github.com/erazemk/izposoja/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server     *httptest.Server
	hub        *notify.Hub
	adminToken string
	userToken  string
	deptID     int64
	adminEmpID int64
	borrowerID int64
	ownerID    int64
	itemID     int64
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)

	dept, err := store.CreateDepartment(ctx, database, "Facilities")
	if err != nil {
		t.Fatalf("creating department: %v", err)
	}
	emp := func(idNumber, first, last string) int64 {
		e, err := store.CreateEmployee(ctx, database, model.Employee{
			IDNumber: idNumber, FirstName: first, LastName: last, DepartmentID: dept.ID,
		})
		if err != nil {
			t.Fatalf("creating employee: %v", err)
		}
		return e.ID
	}

	env := &testEnv{
		deptID:     dept.ID,
		adminEmpID: emp("ADM-1", "Ada", "Admin"),
		borrowerID: emp("EMP-3", "Ana", "Novak"),
		ownerID:    emp("EMP-7", "Marko", "Kranjc"),
	}

	item, err := store.CreateItem(ctx, database, model.Item{
		PropertyNo: "PN-0042", Description: "Projector", Quantity: 5,
		AccountableEmpID: env.ownerID, DepartmentID: dept.ID,
	})
	if err != nil {
		t.Fatalf("creating item: %v", err)
	}
	env.itemID = item.ID

	env.hub = notify.NewHub(8)
	t.Cleanup(env.hub.Close)

	svc := lending.NewService(database, env.hub, lending.Options{AdminEmployeeID: env.adminEmpID})
	router := NewRouter(Deps{DB: database, JWTSecret: testJWTSecret, Lending: svc, Hub: env.hub, Metrics: true})
	env.server = httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(env.server.Close)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin, &env.adminEmpID); err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	if _, err := store.CreateUser(ctx, database, "ana", string(hash), model.RoleUser, &env.borrowerID); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	env.adminToken = login(t, env.server, "admin", "password")
	env.userToken = login(t, env.server, "ana", "password")
	return env
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]any
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader io.Reader = bytes.NewReader(nil)
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request, checks the status and decodes the body
// into out if given.
func do(t *testing.T, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()

	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, wantStatus, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func (env *testEnv) borrowBody(quantity int) map[string]any {
	return map[string]any{
		"borrower_emp_id":     env.borrowerID,
		"owner_emp_id":        env.ownerID,
		"distributed_item_id": env.itemID,
		"quantity":            quantity,
		"department_id":       env.deptID,
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "admin"})
	resp, _ = http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", resp.StatusCode)
	}
	var errResp struct {
		Fields map[string]string `json:"fields"`
	}
	json.NewDecoder(resp.Body).Decode(&errResp)
	resp.Body.Close()
	if errResp.Fields["password"] != "required" {
		t.Errorf("expected password field error, got %v", errResp.Fields)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := http.Get(env.server.URL + "/api/departments")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	for _, path := range []string{"/health", "/metrics"} {
		resp, _ = http.Get(env.server.URL + path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := http.Get(env.server.URL + "/health")
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request ID")
	}

	const id = "0f8fad5b-d9cb-469f-a165-70867728950e"
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("expected request ID %s to be echoed, got %s", id, got)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)

	do(t, "GET", env.server.URL+"/api/users", env.userToken, nil, http.StatusForbidden, nil)
	do(t, "PUT", env.server.URL+"/api/transactions/1/status", env.userToken,
		map[string]string{"status": "approved"}, http.StatusForbidden, nil)

	// A user may only borrow as themselves.
	body := env.borrowBody(1)
	body["borrower_emp_id"] = env.adminEmpID
	do(t, "POST", env.server.URL+"/api/borrow", env.userToken, body, http.StatusForbidden, nil)

	do(t, "GET", env.server.URL+"/api/notifications/"+itoa(env.ownerID), env.userToken, nil, http.StatusForbidden, nil)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	do(t, "POST", env.server.URL+"/api/auth/logout", env.userToken, nil, http.StatusOK, nil)
	do(t, "GET", env.server.URL+"/api/departments", env.userToken, nil, http.StatusUnauthorized, nil)
	do(t, "GET", env.server.URL+"/api/departments", env.adminToken, nil, http.StatusOK, nil)
}

func TestDirectoryEndpoints(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL + "/api/borrowers?department_id=" + itoa(env.deptID)

	var employees []model.Employee
	do(t, "GET", base, env.userToken, nil, http.StatusOK, &employees)
	if len(employees) != 3 {
		t.Errorf("expected 3 employees, got %d", len(employees))
	}

	do(t, "GET", base+"&exclude_id="+itoa(env.borrowerID)+"&query=nov", env.userToken, nil, http.StatusOK, &employees)
	if len(employees) != 0 {
		t.Errorf("expected excluded borrower to be missing, got %d", len(employees))
	}

	do(t, "GET", base+"&search_type=ID%20Number&query=EMP-7", env.userToken, nil, http.StatusOK, &employees)
	if len(employees) != 1 || employees[0].ID != env.ownerID {
		t.Errorf("expected owner by ID number, got %+v", employees)
	}

	do(t, "GET", env.server.URL+"/api/borrowers", env.userToken, nil, http.StatusBadRequest, nil)

	var departments []model.Department
	do(t, "GET", env.server.URL+"/api/departments", env.userToken, nil, http.StatusOK, &departments)
	if len(departments) != 1 {
		t.Errorf("expected 1 department, got %d", len(departments))
	}
}

func TestItemsEndpoints(t *testing.T) {
	env := setupTestServer(t)

	var items []model.Item
	do(t, "GET", env.server.URL+"/api/items/department/"+itoa(env.deptID), env.userToken, nil, http.StatusOK, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}

	do(t, "GET", env.server.URL+"/api/items/department/"+itoa(env.deptID)+"?exclude_emp="+itoa(env.ownerID),
		env.userToken, nil, http.StatusOK, &items)
	if len(items) != 0 {
		t.Errorf("expected owner's items to be excluded, got %d", len(items))
	}

	do(t, "GET", env.server.URL+"/api/items/employee/"+itoa(env.ownerID), env.userToken, nil, http.StatusOK, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item for owner, got %d", len(items))
	}
	do(t, "GET", env.server.URL+"/api/items/employee/9999", env.userToken, nil, http.StatusNotFound, nil)

	var item model.Item
	do(t, "GET", env.server.URL+"/api/items/"+itoa(env.itemID), env.userToken, nil, http.StatusOK, &item)
	if item.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", item.Quantity)
	}
	do(t, "GET", env.server.URL+"/api/photos/"+itoa(env.itemID), env.userToken, nil, http.StatusNotFound, nil)
}

func TestDeleteItem(t *testing.T) {
	env := setupTestServer(t)
	url := env.server.URL + "/api/items/" + itoa(env.itemID)

	do(t, "DELETE", url, env.userToken, nil, http.StatusForbidden, nil)
	do(t, "DELETE", url, env.adminToken, nil, http.StatusOK, nil)
	do(t, "DELETE", url, env.adminToken, nil, http.StatusNotFound, nil)
	do(t, "DELETE", env.server.URL+"/api/items/9999", env.adminToken, nil, http.StatusNotFound, nil)

	do(t, "GET", url, env.userToken, nil, http.StatusNotFound, nil)

	var items []model.Item
	do(t, "GET", env.server.URL+"/api/items/department/"+itoa(env.deptID), env.userToken, nil, http.StatusOK, &items)
	if len(items) != 0 {
		t.Errorf("expected deleted item to be hidden, got %d", len(items))
	}

	// Deleted items cannot be borrowed.
	do(t, "POST", env.server.URL+"/api/borrow", env.userToken, env.borrowBody(1), http.StatusNotFound, nil)
}

func TestBorrowFlow(t *testing.T) {
	env := setupTestServer(t)

	var created struct {
		TransactionID int64 `json:"transactionId"`
	}
	do(t, "POST", env.server.URL+"/api/borrow", env.userToken, env.borrowBody(2), http.StatusCreated, &created)
	if created.TransactionID == 0 {
		t.Fatal("expected a transaction ID")
	}

	var item model.Item
	do(t, "GET", env.server.URL+"/api/items/"+itoa(env.itemID), env.userToken, nil, http.StatusOK, &item)
	if item.Quantity != 3 {
		t.Errorf("expected quantity 3 after borrowing 2, got %d", item.Quantity)
	}

	var txn model.Transaction
	do(t, "GET", env.server.URL+"/api/transactions/"+itoa(created.TransactionID), env.userToken, nil, http.StatusOK, &txn)
	if txn.Status != model.StatusPending || txn.Quantity != 2 {
		t.Errorf("unexpected transaction %+v", txn)
	}

	for _, empID := range []int64{env.adminEmpID, env.ownerID, env.borrowerID} {
		var notifications []model.Notification
		do(t, "GET", env.server.URL+"/api/notifications/"+itoa(empID), env.adminToken, nil, http.StatusOK, &notifications)
		if len(notifications) != 1 {
			t.Fatalf("expected 1 notification for employee %d, got %d", empID, len(notifications))
		}
		if notifications[0].TransactionID == nil || *notifications[0].TransactionID != created.TransactionID {
			t.Errorf("notification not linked to transaction %d", created.TransactionID)
		}
	}

	var borrowed []model.BorrowedItem
	do(t, "GET", env.server.URL+"/api/borrowed/"+itoa(env.borrowerID), env.userToken, nil, http.StatusOK, &borrowed)
	if len(borrowed) != 0 {
		t.Errorf("pending transaction should not be borrowed yet, got %d", len(borrowed))
	}

	do(t, "PUT", env.server.URL+"/api/transactions/"+itoa(created.TransactionID)+"/status", env.adminToken,
		map[string]string{"status": "approved"}, http.StatusOK, &txn)
	if txn.Status != model.StatusApproved {
		t.Errorf("expected approved, got %s", txn.Status)
	}

	do(t, "PUT", env.server.URL+"/api/transactions/"+itoa(created.TransactionID)+"/status", env.adminToken,
		map[string]string{"status": "pending"}, http.StatusBadRequest, nil)

	do(t, "GET", env.server.URL+"/api/borrowed/"+itoa(env.borrowerID), env.userToken, nil, http.StatusOK, &borrowed)
	if len(borrowed) != 1 || borrowed[0].OwnerName != "Marko Kranjc" {
		t.Errorf("expected one borrowed item from Marko Kranjc, got %+v", borrowed)
	}

	req, _ := authRequest("GET", env.server.URL+"/api/borrowed/"+itoa(env.borrowerID)+"/export", env.userToken, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for export, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != report.XLSXContentType {
		t.Errorf("unexpected export content type %q", ct)
	}
}

func TestBorrowRejections(t *testing.T) {
	env := setupTestServer(t)
	url := env.server.URL + "/api/borrow"

	var errResp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	do(t, "POST", url, env.userToken, env.borrowBody(0), http.StatusBadRequest, &errResp)
	if errResp.Fields["quantity"] == "" {
		t.Errorf("expected quantity field error, got %v", errResp.Fields)
	}

	body := env.borrowBody(1)
	body["owner_emp_id"] = env.borrowerID
	do(t, "POST", url, env.userToken, body, http.StatusBadRequest, &errResp)
	if errResp.Fields["owner_emp_id"] != "nefield" {
		t.Errorf("expected owner_emp_id nefield error, got %v", errResp.Fields)
	}

	do(t, "POST", url, env.userToken, env.borrowBody(6), http.StatusBadRequest, &errResp)
	if errResp.Error != "insufficient stock" {
		t.Errorf("expected insufficient stock, got %q", errResp.Error)
	}

	body = env.borrowBody(1)
	body["owner_emp_id"] = env.adminEmpID
	do(t, "POST", url, env.userToken, body, http.StatusBadRequest, &errResp)
	if errResp.Error != "owner is not accountable for the item" {
		t.Errorf("expected invalid owner, got %q", errResp.Error)
	}

	body = env.borrowBody(1)
	body["distributed_item_id"] = 9999
	do(t, "POST", url, env.userToken, body, http.StatusNotFound, nil)

	var item model.Item
	do(t, "GET", env.server.URL+"/api/items/"+itoa(env.itemID), env.userToken, nil, http.StatusOK, &item)
	if item.Quantity != 5 {
		t.Errorf("rejected requests must not change stock, got %d", item.Quantity)
	}
}

func TestLendFlow(t *testing.T) {
	env := setupTestServer(t)

	var owner model.User
	do(t, "POST", env.server.URL+"/api/users", env.adminToken, map[string]any{
		"username": "marko", "password": "password", "role": "user", "employee_id": env.ownerID,
	}, http.StatusCreated, &owner)
	ownerToken := login(t, env.server, "marko", "password")

	var created struct {
		TransactionID int64 `json:"transactionId"`
	}
	do(t, "POST", env.server.URL+"/api/lend_transaction", ownerToken, map[string]any{
		"emp_id":       env.ownerID,
		"item_id":      env.itemID,
		"quantity":     1,
		"borrowerId":   env.borrowerID,
		"currentDptId": env.deptID,
	}, http.StatusCreated, &created)

	var txn model.Transaction
	do(t, "GET", env.server.URL+"/api/transactions/"+itoa(created.TransactionID), env.userToken, nil, http.StatusOK, &txn)
	if txn.Kind != model.KindLend || txn.OwnerEmpID != env.ownerID {
		t.Errorf("unexpected lend transaction %+v", txn)
	}

	var notifications []model.Notification
	do(t, "GET", env.server.URL+"/api/notifications/"+itoa(env.borrowerID), env.userToken, nil, http.StatusOK, &notifications)
	if len(notifications) != 1 || !strings.Contains(notifications[0].Message, "wants to lend you") {
		t.Errorf("expected lend notification for borrower, got %+v", notifications)
	}

	var transactions []model.Transaction
	do(t, "GET", env.server.URL+"/api/transactions", env.userToken, nil, http.StatusOK, &transactions)
	if len(transactions) != 1 {
		t.Errorf("expected 1 transaction for borrower, got %d", len(transactions))
	}
}

func TestNotificationsMarkRead(t *testing.T) {
	env := setupTestServer(t)
	do(t, "POST", env.server.URL+"/api/borrow", env.userToken, env.borrowBody(1), http.StatusCreated, nil)

	var notifications []model.Notification
	do(t, "GET", env.server.URL+"/api/notifications/"+itoa(env.borrowerID), env.userToken, nil, http.StatusOK, &notifications)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	id := itoa(notifications[0].ID)

	do(t, "PUT", env.server.URL+"/api/notifications/"+id+"/read", env.userToken, nil, http.StatusOK, nil)
	do(t, "PUT", env.server.URL+"/api/notifications/"+id+"/read", env.userToken, nil, http.StatusOK, nil)
	do(t, "PUT", env.server.URL+"/api/notifications/9999/read", env.userToken, nil, http.StatusNotFound, nil)

	do(t, "GET", env.server.URL+"/api/notifications/"+itoa(env.borrowerID), env.userToken, nil, http.StatusOK, &notifications)
	if len(notifications) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(notifications))
	}

	do(t, "GET", env.server.URL+"/api/notifications/"+itoa(env.borrowerID)+"?includeRead=true", env.userToken, nil, http.StatusOK, &notifications)
	if len(notifications) != 1 || !notifications[0].Read {
		t.Errorf("expected the read notification with includeRead, got %+v", notifications)
	}
}

func TestCreateNotification(t *testing.T) {
	env := setupTestServer(t)
	url := env.server.URL + "/api/notifications"

	var created model.Notification
	do(t, "POST", url, env.adminToken, map[string]any{
		"recipient_emp_id": env.ownerID, "message": "Inventory audit on Monday.",
	}, http.StatusCreated, &created)
	if created.ID == 0 || created.RecipientEmpID != env.ownerID || created.Read {
		t.Errorf("unexpected notification %+v", created)
	}

	do(t, "POST", url, env.userToken, map[string]any{
		"recipient_emp_id": env.ownerID, "message": "hi",
	}, http.StatusForbidden, nil)
	do(t, "POST", url, env.adminToken, map[string]any{
		"recipient_emp_id": 9999, "message": "hi",
	}, http.StatusNotFound, nil)
	do(t, "POST", url, env.adminToken, map[string]any{
		"recipient_emp_id": env.ownerID,
	}, http.StatusBadRequest, nil)
}

func TestWebSocketReceivesNotification(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws?access_token=" + env.userToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Connections() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	do(t, "POST", env.server.URL+"/api/borrow", env.userToken, env.borrowBody(1), http.StatusCreated, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev notify.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Event != notify.EventNewNotification {
		t.Errorf("expected %s, got %s", notify.EventNewNotification, ev.Event)
	}
	if ev.Data.RecipientEmpID != env.borrowerID {
		t.Errorf("expected event for borrower, got recipient %d", ev.Data.RecipientEmpID)
	}
}

func TestWebSocketRequiresAuth(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
