package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/izposoja/internal/metrics"
	"github.com/erazemk/izposoja/internal/model"
)

// DefaultQueueSize is the per-session outbound buffer used when none is
// configured.
const DefaultQueueSize = 16

// Session is one live connection of an employee.
type Session struct {
	ID         string
	EmployeeID int64
	send       chan []byte
}

// Send returns the session's outbound queue. It is closed when the session
// is unregistered or the hub shuts down.
func (s *Session) Send() <-chan []byte {
	return s.send
}

// Hub keeps the live sessions of every employee, keyed by employee ID.
type Hub struct {
	queueSize int

	mu      sync.Mutex
	rooms   map[int64]map[*Session]struct{}
	origins map[string]struct{}
	closed  bool
}

// NewHub creates a hub whose sessions buffer up to queueSize events.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		queueSize: queueSize,
		rooms:     make(map[int64]map[*Session]struct{}),
	}
}

// Register adds a session to the employee's room.
func (h *Hub) Register(id string, employeeID int64) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is closed")
	}

	s := &Session{ID: id, EmployeeID: employeeID, send: make(chan []byte, h.queueSize)}
	room, ok := h.rooms[employeeID]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[employeeID] = room
	}
	room[s] = struct{}{}
	metrics.WebSocketSessions.Inc()
	return s, nil
}

// Unregister removes a session and closes its queue. Unregistering twice is
// a no-op.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[s.EmployeeID]
	if !ok {
		return
	}
	if _, ok := room[s]; !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, s.EmployeeID)
	}
	close(s.send)
	metrics.WebSocketSessions.Dec()
}

// Deliver queues an encoded event on every session of the employee and
// returns how many sessions accepted it. A session with a full queue misses
// the event.
func (h *Hub) Deliver(employeeID int64, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[employeeID]
	if len(room) == 0 {
		metrics.NotificationPushes.WithLabelValues("offline").Inc()
		return 0
	}

	delivered := 0
	for s := range room {
		select {
		case s.send <- payload:
			delivered++
			metrics.NotificationPushes.WithLabelValues("delivered").Inc()
		default:
			metrics.NotificationPushes.WithLabelValues("dropped").Inc()
			slog.Warn("notification dropped, session queue full",
				"session", s.ID, "recipient", employeeID)
		}
	}
	return delivered
}

// Publish encodes n as a newNotification event and delivers it to the
// recipient's local sessions.
func (h *Hub) Publish(_ context.Context, n model.Notification) error {
	payload, err := encodeEvent(n)
	if err != nil {
		return err
	}
	h.Deliver(n.RecipientEmpID, payload)
	return nil
}

// Connections returns the number of open sessions.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}

// Close unregisters every session. Later registrations fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for empID, room := range h.rooms {
		for s := range room {
			close(s.send)
			metrics.WebSocketSessions.Dec()
		}
		delete(h.rooms, empID)
	}
}

func encodeEvent(n model.Notification) ([]byte, error) {
	payload, err := json.Marshal(Event{Event: EventNewNotification, Data: n})
	if err != nil {
		return nil, fmt.Errorf("encoding notification event: %w", err)
	}
	return payload, nil
}
