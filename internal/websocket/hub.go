package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves an access token to its user.
type TokenParser interface {
	ParseAccessToken(token string) (uuid.UUID, error)
}

type MembershipLookup interface {
	GetMembership(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomMembership, error)
}

// Hub keeps one channel subscription per room that has live sockets and fans
// every payload out to them.
type Hub struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]map[*client]struct{}
	cancels map[uuid.UUID]context.CancelFunc

	feed    Feed
	tokens  TokenParser
	members MembershipLookup
}

func NewHub(feed Feed, tokens TokenParser, members MembershipLookup) *Hub {
	return &Hub{
		rooms:   make(map[uuid.UUID]map[*client]struct{}),
		cancels: make(map[uuid.UUID]context.CancelFunc),
		feed:    feed,
		tokens:  tokens,
		members: members,
	}
}

// ServeRoom upgrades GET /rooms/{id}/events?token=... for an active member of the room.
func (h *Hub) ServeRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.tokens.ParseAccessToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	membership, err := h.members.GetMembership(r.Context(), userID, roomID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("websocket membership lookup failed", "room_id", roomID, "user_id", userID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err != nil || !membership.IsActive {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}

	c := &client{hub: h, conn: conn, roomID: roomID, userID: userID, send: make(chan []byte, sendBuffer)}
	if err := h.register(c); err != nil {
		slog.Error("room subscription failed", "room_id", roomID, "error", err)
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) error {
	if h.join(c) {
		return nil
	}

	// mu is not held across Subscribe.
	ctx, cancel := context.WithCancel(context.Background())
	messages, err := h.feed.Subscribe(ctx, RoomChannel(c.roomID))
	if err != nil {
		cancel()
		return err
	}

	h.mu.Lock()
	clients, ok := h.rooms[c.roomID]
	if ok {
		// Another socket subscribed the room first.
		cancel()
	} else {
		clients = make(map[*client]struct{})
		h.rooms[c.roomID] = clients
		h.cancels[c.roomID] = cancel
		go h.pump(c.roomID, messages)
	}
	clients[c] = struct{}{}
	n := len(clients)
	h.mu.Unlock()

	slog.Info("websocket connected", "room_id", c.roomID, "user_id", c.userID, "listeners", n)
	return nil
}

// join adds c to a room that already has a subscription.
func (h *Hub) join(c *client) bool {
	h.mu.Lock()
	clients, ok := h.rooms[c.roomID]
	if ok {
		clients[c] = struct{}{}
	}
	n := len(clients)
	h.mu.Unlock()

	if ok {
		slog.Info("websocket connected", "room_id", c.roomID, "user_id", c.userID, "listeners", n)
	}
	return ok
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)

	// Last listener gone: drop the room subscription.
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
		if cancel, ok := h.cancels[c.roomID]; ok {
			cancel()
			delete(h.cancels, c.roomID)
		}
	}

	slog.Info("websocket disconnected", "room_id", c.roomID, "user_id", c.userID)
}

func (h *Hub) pump(roomID uuid.UUID, messages <-chan string) {
	for msg := range messages {
		h.broadcast(roomID, []byte(msg))
	}
}

func (h *Hub) broadcast(roomID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[roomID] {
		select {
		case c.send <- data:
		default:
			slog.Warn("websocket send buffer full, dropping event", "room_id", roomID, "user_id", c.userID)
		}
	}
}

// Listeners returns the number of live sockets on a room.
func (h *Hub) Listeners(roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Close drops every subscription and disconnects all sockets.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, cancel := range h.cancels {
		cancel()
		for c := range h.rooms[roomID] {
			close(c.send)
		}
	}
	h.rooms = make(map[uuid.UUID]map[*client]struct{})
	h.cancels = make(map[uuid.UUID]context.CancelFunc)
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID uuid.UUID
	userID uuid.UUID
	send   chan []byte
}

// readPump discards inbound frames; it only exists to notice disconnects and pongs.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "room_id", c.roomID, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("websocket write failed", "room_id", c.roomID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
