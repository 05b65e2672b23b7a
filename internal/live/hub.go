package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"livewall/internal/stream"
	utils "livewall/pkg/utils"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

// ViewSource produces the reconciled stream list.
type ViewSource interface {
	View(ctx context.Context) (stream.StreamsResponse, error)
}

// Hub pushes the reconciled view to websocket subscribers on connect, on every
// tick and whenever Refresh is called. One reconciliation serves all clients
// of a push.
type Hub struct {
	source   ViewSource
	interval time.Duration
	upgrader websocket.Upgrader

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	refresh    chan struct{}
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte
}

func NewHub(source ViewSource, interval time.Duration) *Hub {
	return &Hub{
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and pushes until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.push(ctx)

		case <-h.refresh:
			h.push(ctx)
		}
	}
}

// Refresh schedules an immediate push, e.g. after a new snapshot was written.
func (h *Hub) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) push(ctx context.Context) {
	if h.ClientCount() == 0 {
		return
	}
	payload := h.payload(ctx)
	if payload == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			// slow subscriber
			close(client.Send)
			delete(h.clients, id)
		}
	}
}

func (h *Hub) payload(ctx context.Context) []byte {
	// read failures are already carried in the envelope
	resp, _ := h.source.View(ctx)
	data, err := json.Marshal(resp)
	if err != nil {
		utils.WithField("error", err.Error()).Error("Error marshaling stream view")
		return nil
	}
	return data
}

// ServeWS upgrades the request and subscribes the connection.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		utils.WithField("error", err.Error()).Warn("WebSocket upgrade failed")
		return nil
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Hub:  h,
		Send: make(chan []byte, sendBuffer),
	}
	if payload := h.payload(c.Request().Context()); payload != nil {
		client.Send <- payload
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.WritePump()
	client.ReadPump()
	return nil
}

// RegisterRoutes mounts the live endpoint on e
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/streams/ws", h.ServeWS)
}

// ReadPump drains the connection until it closes. Subscribers never send
// anything meaningful; reading keeps control frames flowing.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.WithField("error", err.Error()).Error("WebSocket read error")
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
