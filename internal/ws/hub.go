package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/observability"
	"ephemeral-chat/internal/store"
)

// Sender is the write side of a websocket connection.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Subscriber opens the realtime channel of a room.
type Subscriber interface {
	Subscribe(ctx context.Context, roomID string) (store.Subscription, error)
}

type client struct {
	conn Sender
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type room struct {
	clients map[Sender]*client
	sub     store.Subscription
}

// Hub maintains active websocket rooms. Each room with at least one local
// client holds exactly one channel subscription.
type Hub struct {
	subscriber Subscriber
	log        *zap.Logger
	rooms      map[string]*room
	mu         sync.RWMutex
	wg         sync.WaitGroup
	closed     bool
	onLeave    func(roomID string, info ConnInfo)
}

// NewHub creates an empty hub.
func NewHub(subscriber Subscriber, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subscriber: subscriber,
		log:        log,
		rooms:      make(map[string]*room),
	}
}

var errHubClosed = errors.New("hub closed")

// OnLeave registers fn to run when a member's last local connection to a room goes away.
// It is not called for connections closed by a room destruction or by Close.
func (h *Hub) OnLeave(fn func(roomID string, info ConnInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLeave = fn
}

// AddClient registers a websocket connection to a room, subscribing to the
// room channel when it is the first local client.
func (h *Hub) AddClient(ctx context.Context, roomID string, conn Sender, info ConnInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}

	r, ok := h.rooms[roomID]
	if !ok {
		sub, err := h.subscriber.Subscribe(ctx, roomID)
		if err != nil {
			return err
		}
		r = &room{clients: make(map[Sender]*client), sub: sub}
		h.rooms[roomID] = r

		h.wg.Add(1)
		go h.pump(roomID, r)
	}
	r.clients[conn] = &client{conn: conn, info: info}
	return nil
}

// RemoveClient removes a connection. The room subscription is released with its last client.
func (h *Hub) RemoveClient(roomID string, conn Sender) {
	h.removeClient(roomID, conn, true)
}

func (h *Hub) removeClient(roomID string, conn Sender, notify bool) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	c, ok := r.clients[conn]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(r.clients, conn)
	last := true
	for _, other := range r.clients {
		if other.info.Token == c.info.Token {
			last = false
			break
		}
	}
	if len(r.clients) == 0 {
		delete(h.rooms, roomID)
		_ = r.sub.Close()
	}
	onLeave := h.onLeave
	h.mu.Unlock()

	if notify && last && onLeave != nil {
		onLeave(roomID, c.info)
	}
}

// ClientCount returns the number of local connections in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[roomID]; ok {
		return len(r.clients)
	}
	return 0
}

// Close drops every connection and subscription and waits for the pumps to exit.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		_ = r.sub.Close()
		for conn := range r.clients {
			_ = conn.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) pump(roomID string, r *room) {
	defer h.wg.Done()
	for payload := range r.sub.Messages() {
		h.deliver(roomID, r, payload)
	}
}

// Broadcast delivers one channel payload to every local client of the room.
// chat.message payloads are projected per reader so the author token only
// reaches its holder. After chat.destroy the room's connections are closed.
func (h *Hub) Broadcast(roomID string, payload []byte) {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r != nil {
		h.deliver(roomID, r, payload)
	}
}

// deliver skips a room entry that was already released, so a draining
// subscription never writes into a newer one for the same id.
func (h *Hub) deliver(roomID string, target *room, payload []byte) {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.log.Warn("dropping malformed realtime payload", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	h.mu.RLock()
	var clients []*client
	if r, ok := h.rooms[roomID]; ok && r == target {
		clients = make([]*client, 0, len(r.clients))
		for _, c := range r.clients {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	var msg *models.Message
	if event.Event == models.EventMessage {
		var m models.Message
		if err := json.Unmarshal(event.Data, &m); err == nil {
			msg = &m
		}
	}

	for _, c := range clients {
		out := payload
		if msg != nil {
			out = projectMessage(event, *msg, c.info.Token)
		}
		if err := c.write(out); err != nil {
			h.dropClient(roomID, c, err)
			continue
		}
		observability.IncWSEvent(event.Event)
	}

	if event.Event == models.EventDestroy {
		for _, c := range clients {
			h.removeClient(roomID, c.conn, false)
			_ = c.conn.Close()
		}
	}
}

func projectMessage(event models.Event, msg models.Message, readerToken string) []byte {
	data, err := json.Marshal(msg.ProjectFor(readerToken))
	if err != nil {
		return nil
	}
	event.Data = data
	out, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	return out
}

func (h *Hub) dropClient(roomID string, c *client, err error) {
	h.log.Warn("websocket write error",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.info.ConnID),
		zap.String("username", c.info.Username),
		zap.Duration("connected_for", time.Since(c.info.ConnectedAt)),
		zap.Error(err),
	)
	_ = c.conn.Close()
	h.RemoveClient(roomID, c.conn)
	observability.IncWSEvent("ws_error")
}
