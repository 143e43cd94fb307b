// Package feed streams tracker events to websocket clients.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ipobot/services/tracker"
)

const (
	defaultHistory = 100
	clientBuffer   = 64
	pingInterval   = 45 * time.Second
	readDeadline   = 90 * time.Second
	writeDeadline  = 10 * time.Second
)

// Message types
const (
	TypeHistory     = "history"
	TypePromotion   = "promotion"
	TypeDayComplete = "day_complete"
	TypeStatus      = "status"
)

// Message is one JSON frame sent to clients
type Message struct {
	Type        string                    `json:"type"`
	Promotion   *tracker.PromotionEvent   `json:"promotion,omitempty"`
	DayComplete *tracker.DayCompleteEvent `json:"day_complete,omitempty"`
	Status      *tracker.StatusEvent      `json:"status,omitempty"`
	History     []Message                 `json:"history,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	out  chan Message
	done chan struct{}
}

// Hub keeps the connected clients and a bounded history of alert messages
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	history []Message
	limit   int
	logger  *zap.Logger
}

// NewHub creates a Hub that replays up to limit past alerts to new clients
func NewHub(limit int, logger *zap.Logger) *Hub {
	if limit <= 0 {
		limit = defaultHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		limit:   limit,
		logger:  logger.Named("feed"),
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// History returns a copy of the buffered alert messages, oldest first
func (h *Hub) History() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Message(nil), h.history...)
}

func (h *Hub) remember(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, m)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
}

// Broadcast queues m for every client. Slow clients drop messages instead of
// blocking the tracker.
func (h *Hub) Broadcast(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- m:
		default:
			h.logger.Warn("Dropping message for slow client", zap.String("type", m.Type))
		}
	}
}

// NotifyPromotion implements tracker.Notifier
func (h *Hub) NotifyPromotion(ctx context.Context, ev tracker.PromotionEvent) error {
	m := Message{Type: TypePromotion, Promotion: &ev}
	h.remember(m)
	h.Broadcast(m)
	return nil
}

// NotifyDayComplete implements tracker.Notifier
func (h *Hub) NotifyDayComplete(ctx context.Context, ev tracker.DayCompleteEvent) error {
	m := Message{Type: TypeDayComplete, DayComplete: &ev}
	h.remember(m)
	h.Broadcast(m)
	return nil
}

// NotifyStatus implements tracker.StatusNotifier. Status changes are not replayed.
func (h *Hub) NotifyStatus(ctx context.Context, ev tracker.StatusEvent) error {
	h.Broadcast(Message{Type: TypeStatus, Status: &ev})
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams messages until the client goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn, out: make(chan Message, clientBuffer), done: make(chan struct{})}
	c.out <- Message{Type: TypeHistory, History: h.History()}
	h.add(c)
	defer func() {
		h.remove(c)
		close(c.done)
	}()

	h.logger.Debug("Client connected", zap.String("remote", r.RemoteAddr))

	go h.writeLoop(c)

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.logger.Debug("Client disconnected", zap.String("remote", r.RemoteAddr))
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case m := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(m); err != nil {
				h.logger.Debug("Write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
