package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browsers connect from the web app's origin; the token check
		// in front of the upgrade is what authenticates them.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config tunes the per-client behaviour of the hub
type Config struct {
	PlaybackTimeout time.Duration
	IdleTimeout     time.Duration
}

// Hub maintains the set of connected clients.
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	emergency  *usecase.EmergencyService
	checklists *usecase.ChecklistService
	config     Config

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(emergency *usecase.EmergencyService, checklists *usecase.ChecklistService, config Config, logger *zap.Logger) *Hub {
	if config.PlaybackTimeout <= 0 {
		config.PlaybackTimeout = 2 * time.Minute
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		emergency:  emergency,
		checklists: checklists,
		config:     config,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx ends every client is shut down.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id), zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			h.mu.Unlock()
			client.shutdown()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()

			for client := range clients {
				client.shutdown()
			}
			h.logger.Info("Hub stopped", zap.Int("clients", len(clients)))
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeIdle disconnects clients without control traffic since before cutoff
func (h *Hub) closeIdle(cutoff time.Time) int {
	h.mu.RLock()
	var idle []*Client
	for client := range h.clients {
		if client.idleSince().Before(cutoff) {
			idle = append(idle, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range idle {
		h.logger.Info("Closing idle client", zap.String("clientID", client.id))
		client.shutdown()
	}
	return len(idle)
}

// ServeWS upgrades an authenticated request and attaches a new client
func (h *Hub) ServeWS(c echo.Context, userID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(h, conn, uuid.New().String(), userID)
	select {
	case h.register <- client:
	case <-h.stopped:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}
