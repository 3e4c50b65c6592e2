package httpadapter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// observerConn is the part of *websocket.Conn the hub needs.
type observerConn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type observer struct {
	conn   observerConn
	events chan caseEvent
	done   chan struct{}
	once   sync.Once
}

func (o *observer) stop() {
	o.once.Do(func() {
		close(o.done)
		_ = o.conn.Close()
	})
}

// Hub holds the single live dashboard connection. Setting a new one closes
// the previous; each observer has one writer goroutine.
type Hub struct {
	mu           sync.Mutex
	live         *observer
	writeTimeout time.Duration
	now          func() time.Time
}

func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	return &Hub{writeTimeout: writeTimeout, now: time.Now}
}

// Set makes conn the live observer.
func (h *Hub) Set(conn observerConn) {
	obs := &observer{
		conn:   conn,
		events: make(chan caseEvent, 64),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	prev := h.live
	h.live = obs
	h.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	go h.pump(obs)
}

// Clear drops conn if it is still the live observer.
func (h *Hub) Clear(conn observerConn) {
	h.mu.Lock()
	var prev *observer
	if h.live != nil && h.live.conn == conn {
		prev = h.live
		h.live = nil
	}
	h.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
}

func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live != nil
}

// Notify queues a case snapshot for the live observer. It never blocks.
func (h *Hub) Notify(ctx context.Context, c *domain.Case) {
	h.mu.Lock()
	obs := h.live
	h.mu.Unlock()
	if obs == nil || c == nil {
		return
	}

	ev := newCaseEvent(c, h.now())
	select {
	case obs.events <- ev:
	default:
		observability.LoggerFromContext(ctx).Warn("observer backlog full, dropping event", "case_id", string(c.ID))
	}
}

func (h *Hub) pump(obs *observer) {
	for {
		select {
		case <-obs.done:
			return
		case ev := <-obs.events:
			_ = obs.conn.SetWriteDeadline(h.now().Add(h.writeTimeout))
			if err := obs.conn.WriteJSON(ev); err != nil {
				observability.Logger().Warn("observer write failed, clearing", "error", err)
				h.Clear(obs.conn)
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWS upgrades the dashboard connection and keeps it live until the
// client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Set(conn)
	log.Info("dashboard connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Clear(conn)
	log.Info("dashboard disconnected")
}

const (
	eventProgress = "call progress event"
	eventResolved = "call resolved"
)

type caseEvent struct {
	Event string       `json:"event"`
	Case  CaseResponse `json:"case"`
}

func newCaseEvent(c *domain.Case, now time.Time) caseEvent {
	name := eventProgress
	if c.Status == domain.StatusResolved {
		name = eventResolved
	}
	return caseEvent{Event: name, Case: toCaseResponse(c, now)}
}
