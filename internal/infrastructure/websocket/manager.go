package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/service"
	"houseshower/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var _ service.EventPublisher = (*Manager)(nil)

// Client is one browser tab listening for product changes.
type Client struct {
	Email string
	Conn  *websocket.Conn
	Send  chan []byte
}

func NewClient(email string, conn *websocket.Conn) *Client {
	return &Client{
		Email: email,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
	}
}

// Manager fans product events out to every connected client. A guest may
// have several tabs open, so clients are tracked individually.
type Manager struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Start runs the manager loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client] = struct{}{}
				m.mutex.Unlock()
				logger.Debug("Websocket client registered: %s", client.Email)

			case client := <-m.Unregister:
				m.remove(client)
				logger.Debug("Websocket client unregistered: %s", client.Email)

			case message := <-m.broadcast:
				m.mutex.RLock()
				var slow []*Client
				for client := range m.clients {
					select {
					case client.Send <- message:
					default:
						slow = append(slow, client)
					}
				}
				m.mutex.RUnlock()
				for _, client := range slow {
					m.remove(client)
				}

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for client := range m.clients {
					close(client.Send)
					delete(m.clients, client)
				}
				m.mutex.Unlock()
				return
			}
		}
	}()
}

// Join registers client unless the manager has already stopped.
func (m *Manager) Join(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.Send)
	}
}

// Publish implements service.EventPublisher. It never blocks the caller; if
// the broadcast queue is full the event is dropped and logged.
func (m *Manager) Publish(event entity.ProductEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to encode product event: %v", err)
		return
	}
	select {
	case m.broadcast <- payload:
	default:
		logger.Warn("Dropping product event %s for %d: broadcast queue full", event.Type, event.ProductID)
	}
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// ReadPump drains the connection so control frames are handled; clients
// are not expected to send anything.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read error for %s: %v", c.Email, err)
			}
			return
		}
	}
}

// WritePump sends queued events and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("Websocket write error for %s: %v", c.Email, err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
