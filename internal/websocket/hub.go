package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"voucherpro/internal/reqctx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Voucher events pushed to connected clients.
const (
	EventVoucherCreated       = "voucher.created"
	EventVoucherUpdated       = "voucher.updated"
	EventVoucherStatusChanged = "voucher.status_changed"
	EventVoucherDeleted       = "voucher.deleted"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer and the session token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the JSON frame sent to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   string      `json:"at"`
}

type envelope struct {
	companyID uuid.UUID
	payload   []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// Hub maintains the set of active clients and fans events out to the clients of one company
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// Run starts the core dispatch loop for WebSocket events. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("company_id", client.CompanyID.String()), zap.String("user_id", client.UserID.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("client disconnected", zap.String("user_id", client.UserID.String()))
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.CompanyID != msg.companyID {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for the clients of companyID. It never blocks the caller;
// when the queue is full the event is dropped and logged.
func (h *Hub) Publish(companyID uuid.UUID, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{companyID: companyID, payload: payload}:
	default:
		h.log.Warn("event queue full, dropping event", zap.String("type", eventType), zap.String("company_id", companyID.String()))
	}
}

// ClientCount returns the number of connected clients of companyID.
func (h *Hub) ClientCount(companyID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for client := range h.clients {
		if client.CompanyID == companyID {
			n++
		}
	}
	return n
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection until the peer goes away
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("unexpected close", zap.Error(err))
			}
			break
		}
	}
}

// Authenticator resolves a session token to the caller.
type Authenticator func(ctx context.Context, token string) (reqctx.Identity, error)

// ServeWs handles websocket requests from the peer. The session token comes in the token query param.
func ServeWs(hub *Hub, c *gin.Context, authenticate Authenticator) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	identity, err := authenticate(c.Request.Context(), tokenString)
	if err != nil {
		hub.log.Debug("connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		CompanyID: identity.CompanyID,
		UserID:    identity.UserID,
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
