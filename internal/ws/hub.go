// Package ws pushes live events to connected users over websockets.
package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Connection timings.
const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	pingTimeout  = 5 * time.Second
)

// Event is the JSON frame sent to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one websocket connection of a user.
type Client struct {
	UserID int64

	conn   *websocket.Conn
	send   chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub tracks the open connections of every user.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

// Register adds conn for userID and starts its writer. The client stops when
// ctx is cancelled or Unregister is called.
func (h *Hub) Register(ctx context.Context, userID int64, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAlive()

	slog.Debug("websocket connected", "user", userID)
	return c
}

// Unregister removes c and closes its connection.
func (h *Hub) Unregister(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	slog.Debug("websocket disconnected", "user", c.UserID)
}

// Notify queues an event for every connection of the given users. Clients
// whose buffer is full miss the event rather than block the sender.
func (h *Hub) Notify(userIDs []int64, kind string, payload any) {
	ev := Event{Type: kind, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range userIDs {
		for c := range h.clients[id] {
			select {
			case c.send <- ev:
			default:
				slog.Warn("dropping websocket event", "user", id, "type", kind)
			}
		}
	}
}

// Connected returns the number of open connections for userID.
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(ctx, c.conn, ev)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "user", c.UserID, "error", err)
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}
