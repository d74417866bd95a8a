package notify

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 512
)

// AllowOrigins sets the browser origins, besides the server's own, that may
// open a live session. "*" allows any origin.
func (h *Hub) AllowOrigins(origins ...string) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.origins = allowed
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-origin requests and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[strings.ToLower(origin)]
	return ok
}

// ServeWS upgrades the request and streams the employee's live events until
// the client disconnects or the hub closes. The caller authenticates the
// request and resolves employeeID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, employeeID int64) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	s, err := h.Register(uuid.NewString(), employeeID)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	slog.Debug("websocket connected", "session", s.ID, "employee", employeeID)

	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump drains client frames so control frames get processed. Clients do
// not send data.
func (h *Hub) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.Unregister(s)
		conn.Close()
		slog.Debug("websocket disconnected", "session", s.ID, "employee", s.EmployeeID)
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
