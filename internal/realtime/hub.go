// Package realtime pushes ride events to websocket clients grouped in rooms.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"goride/internal/service"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client message types handled by the hub itself.
const (
	MessageJoinRide  = "join-ride"
	MessageLeaveRide = "leave-ride"
	MessageJoined    = "joined"
	MessageLeft      = "left"
	MessageError     = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AuthFunc validates the token a client sends first and returns its identity.
type AuthFunc func(token string) (userID, role string, err error)

// MessageHandler handles client messages the hub does not handle itself.
type MessageHandler func(client *Client, messageType string, data json.RawMessage) error

// JoinHook runs after a client joins a ride room.
type JoinHook func(client *Client, rideID string)

// Frame is the wire format in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one authenticated websocket connection.
type Client struct {
	ID     string
	UserID string
	Role   string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	rooms  map[string]struct{} // guarded by hub.mu
}

// Hub tracks connected clients and their rooms. It implements service.EventSink.
type Hub struct {
	clients  map[string]*Client
	rooms    map[string]map[string]*Client
	mu       sync.RWMutex
	stopped  bool // guarded by mu
	authFunc AuthFunc
	handler  MessageHandler
	onJoin   JoinHook
	logger   *zap.Logger
}

// Ensure Hub implements service.EventSink.
var _ service.EventSink = (*Hub)(nil)

// NewHub creates a hub.
func NewHub(authFunc AuthFunc, logger *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		authFunc: authFunc,
		logger:   logger,
	}
}

// SetMessageHandler sets the handler for application messages.
func (h *Hub) SetMessageHandler(handler MessageHandler) { h.handler = handler }

// SetJoinHook sets the hook run after a client joins a ride room.
func (h *Hub) SetJoinHook(hook JoinHook) { h.onJoin = hook }

// Run blocks until ctx is done, then disconnects every client and refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
	h.logger.Info("websocket hub stopped")
}

// Publish delivers an envelope to every client in its room except the origin.
func (h *Hub) Publish(ctx context.Context, env service.Envelope) error {
	msg, err := json.Marshal(Frame{Type: env.Event, Data: env.Payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.rooms[env.Channel] {
		if id == env.Origin {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("client send buffer full", zap.String("client_id", id), zap.String("event", env.Event))
		}
	}
	return nil
}

// RoomSize reports how many clients are in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ServeWS upgrades the request and authenticates the client from its first message.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		return
	}

	userID, role, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.logger.Debug("websocket auth failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		rooms:  make(map[string]struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	h.clients[client.ID] = client
	h.joinLocked(client, service.UserChannel(client.UserID))
	h.mu.Unlock()

	if err := conn.WriteJSON(map[string]string{
		"status":    "authenticated",
		"user_id":   userID,
		"client_id": client.ID,
	}); err != nil {
		h.remove(client)
		_ = conn.Close()
		return
	}
	h.logger.Debug("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.String("role", client.Role),
	)

	go client.writePump()
	go client.readPump()
}

// Join adds a client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(client, room)
}

// Leave removes a client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[client.ID] = client
	client.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	delete(h.clients, client.ID)
	close(client.send)
}

// remove drops a disconnected client. Removing it twice is a no-op.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()
	h.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for _, client := range h.clients {
		h.removeLocked(client)
	}
}

// handle dispatches one client frame.
func (h *Hub) handle(c *Client, frame Frame) error {
	switch frame.Type {
	case MessageJoinRide, MessageLeaveRide:
		rideID, err := rideIDFrom(frame.Data)
		if err != nil {
			return err
		}
		room := service.RideChannel(rideID)
		if frame.Type == MessageJoinRide {
			h.Join(c, room)
			c.SendFrame(MessageJoined, map[string]string{"room": room})
			if h.onJoin != nil {
				h.onJoin(c, rideID)
			}
		} else {
			h.Leave(c, room)
			c.SendFrame(MessageLeft, map[string]string{"room": room})
		}
		return nil
	default:
		if h.handler == nil {
			return nil
		}
		return h.handler(c, frame.Type, frame.Data)
	}
}

// rideIDFrom accepts either a bare string or {"rideId": "..."}.
func rideIDFrom(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			RideID string `json:"rideId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", err
		}
		id = obj.RideID
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("ride id is required")
	}
	return id, nil
}

// SendFrame queues a typed message for this client only.
func (c *Client) SendFrame(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Frame{Type: msgType, Data: raw})
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.hub.logger.Debug("malformed websocket message", zap.String("client_id", c.ID), zap.Error(err))
			continue
		}
		if err := c.hub.handle(c, frame); err != nil {
			c.hub.logger.Debug("websocket message rejected",
				zap.String("client_id", c.ID),
				zap.String("type", frame.Type),
				zap.Error(err),
			)
			c.SendFrame(MessageError, map[string]string{"message": err.Error()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
