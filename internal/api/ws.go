package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ProgressEvent is one per-patient generation update on the cohort stream.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	PatientID string    `json:"patient_id"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Cycles    int       `json:"cycles"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans generation progress out to connected websocket clients.
type Hub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan ProgressEvent
	log        *logrus.Logger
}

// NewHub creates an idle hub; Run starts it.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan ProgressEvent, 256),
		log:        logger,
	}
}

// Run owns the client set until the context ends. Slow or broken clients are
// dropped instead of backing up the generator.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*websocket.Conn]struct{})

	closeAll := func() {
		for conn := range clients {
			conn.Close()
		}
	}

	for {
		select {
		case <-ctx.Done():
			closeAll()
			return
		case conn := <-h.register:
			clients[conn] = struct{}{}
		case conn := <-h.unregister:
			if _, ok := clients[conn]; ok {
				delete(clients, conn)
				conn.Close()
			}
		case event := <-h.broadcast:
			for conn := range clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					h.log.WithError(err).Debug("Dropping slow websocket client")
					delete(clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// Broadcast queues an event without blocking the caller; events are shed when
// the buffer is full.
func (h *Hub) Broadcast(event ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins vary per deployment; same-origin policy is enforced
	// upstream at the ingress.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleCohortStream upgrades the connection and parks it on the hub.
func (s *Server) handleCohortStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	s.hub.register <- conn

	// Reader loop detects client disconnects; inbound messages are ignored.
	go func() {
		defer func() { s.hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
