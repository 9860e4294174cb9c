// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/sirupsen/logrus"
)

const (
	clientSendBuffer = 64
	writeTimeout     = 3 * time.Second
)

// client is one player's live connection to one game.
type client struct {
	playerID uuid.UUID
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func newClient(playerID uuid.UUID) *client {
	return &client{
		playerID: playerID,
		send:     make(chan []byte, clientSendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues data without blocking. It reports false if the client is gone or too slow.
func (c *client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub routes game events to the connected players of each game. It is safe to call from under
// a session lock: sends never block and never call back into the session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[uuid.UUID]*client
	log     *logrus.Entry
}

var _ game.Broadcaster = (*Hub)(nil)

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[uuid.UUID]*client),
		log:     logger.WithField("component", "hub"),
	}
}

// register attaches a new connection for the player, closing any previous one.
func (h *Hub) register(code string, playerID uuid.UUID) *client {
	c := newClient(playerID)
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[code]
	if !ok {
		conns = make(map[uuid.UUID]*client)
		h.clients[code] = conns
	}
	if old, ok := conns[playerID]; ok {
		old.close()
	}
	conns[playerID] = c
	return c
}

// unregister detaches c. It reports false if c was already replaced by a newer connection.
func (h *Hub) unregister(code string, c *client) bool {
	c.close()
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.clients[code]
	if conns[c.playerID] != c {
		return false
	}
	delete(conns, c.playerID)
	if len(conns) == 0 {
		delete(h.clients, code)
	}
	return true
}

// Connected returns the number of live connections for a game.
func (h *Hub) Connected(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[code])
}

func (h *Hub) Broadcast(code string, ev game.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("event", ev.Type).Error("marshal broadcast event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for pid, c := range h.clients[code] {
		if !c.trySend(data) {
			h.log.WithFields(logrus.Fields{"game": code, "player": pid, "event": ev.Type}).Warn("dropped event for slow client")
		}
	}
}

func (h *Hub) SendToPlayer(code string, playerID uuid.UUID, ev game.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("event", ev.Type).Error("marshal private event")
		return
	}
	h.mu.RLock()
	c := h.clients[code][playerID]
	h.mu.RUnlock()
	if c != nil && !c.trySend(data) {
		h.log.WithFields(logrus.Fields{"game": code, "player": playerID, "event": ev.Type}).Warn("dropped event for slow client")
	}
}

// writePump drains c.send onto conn until ctx ends or c is closed. A replaced client's
// connection is closed with SessionReplacedError.
func writePump(ctx context.Context, conn *websocket.Conn, c *client, logger *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			conn.Close(websocket.StatusCode(SessionReplacedError), "connection replaced")
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).Debug("websocket write failed")
				return
			}
		}
	}
}
