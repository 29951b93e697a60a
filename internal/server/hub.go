package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/logging"
)

const (
	writeTimeout   = 10 * time.Second
	clientSendBuf  = 32
	upgradeBufSize = 1024
)

type event struct {
	Type     string            `json:"type"`
	Listing  *auction.Snapshot `json:"listing,omitempty"`
	RemoveID string            `json:"id,omitempty"`
}

// Hub fans per-listing snapshots out to websocket clients. A slow client
// gets dropped rather than blocking the poll loops.
type Hub struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logging.Component(logger, "ws_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  upgradeBufSize,
			WriteBufferSize: upgradeBufSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// PublishSnapshot pushes one listing snapshot to every client.
func (h *Hub) PublishSnapshot(snap auction.Snapshot) {
	h.broadcast(event{Type: "listing", Listing: &snap})
}

// PublishRemoval tells clients a listing is gone.
func (h *Hub) PublishRemoval(id string) {
	h.broadcast(event{Type: "removed", RemoveID: id})
}

func (h *Hub) broadcast(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal push event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up; cut it loose.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuf)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", n).Msg("websocket client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readLoop discards inbound frames; the socket is push-only. It exists
// to notice closes and process control frames.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
