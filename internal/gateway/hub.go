// Package gateway fans event-bus notifications out to websocket clients.
// Clients join rooms; each update is delivered once per joined room member.
package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sportsync/internal/eventbus"
	"sportsync/internal/models"
)

// Room names. Sport rooms carry every update for the sport, event rooms a
// single contest, and the live room only in-play updates across sports.
const (
	RoomLive = "sport:live"
)

func SportRoom(sport models.Sport) string {
	return "sport:" + string(sport)
}

func EventRoom(aggregateID string) string {
	return "event:" + aggregateID
}

// OutboundMessage is the frame pushed to clients.
type OutboundMessage struct {
	Room       string          `json:"room"`
	Type       string          `json:"type"`
	Sport      string          `json:"sport,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// inboundMessage is what clients send: join/leave plus a room name.
type inboundMessage struct {
	Action string `json:"action"` // join | leave
	Room   string `json:"room"`
}

// client is one connected socket. The send channel is bounded; a client
// that cannot drain it is disconnected rather than allowed to stall the hub.
type client struct {
	id    string
	send  chan []byte
	rooms map[string]struct{}
}

// Hub tracks connections and room membership and bridges the event bus to
// the sockets. All maps are hub-lock guarded; per-connection writer
// goroutines only ever touch their own channel.
type Hub struct {
	Logger *zap.Logger

	sendBuffer int

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
	closed  bool
}

func NewHub(logger *zap.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Hub{
		Logger:     logger,
		sendBuffer: sendBuffer,
		clients:    make(map[string]*client),
		rooms:      make(map[string]map[string]*client),
	}
}

// AttachBus subscribes the hub to the update streams.
func (h *Hub) AttachBus(bus eventbus.Bus) error {
	if err := bus.Subscribe(eventbus.TypeSportsUpdate, "gateway-sports", h.HandleEvent); err != nil {
		return err
	}
	return bus.Subscribe(eventbus.TypeMarketUpdate, "gateway-markets", h.HandleEvent)
}

// register adds a connection and returns its client record.
func (h *Hub) register() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{
		id:    uuid.NewString(),
		send:  make(chan []byte, h.sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.clients[c.id] = c
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
}

func (h *Hub) join(c *client, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	c.rooms[room] = struct{}{}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*client)
		h.rooms[room] = members
	}
	members[c.id] = c
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast queues the message for every member of the room. Members whose
// buffers are full are dropped; the slow reader pays, not the room.
func (h *Hub) Broadcast(room string, msg OutboundMessage) int {
	msg.Room = room
	frame, err := json.Marshal(msg)
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var stalled []*client
	delivered := 0
	for _, c := range h.rooms[room] {
		select {
		case c.send <- frame:
			delivered++
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		if h.Logger != nil {
			h.Logger.Warn("dropping stalled websocket client",
				zap.String("client_id", c.id),
				zap.String("room", room))
		}
		h.dropLocked(c)
	}
	return delivered
}

// HandleEvent is the bus subscription: one event fans into its sport room,
// its event room, and the live room when the contest is in play.
func (h *Hub) HandleEvent(ctx context.Context, ev eventbus.Event) error {
	var payload eventbus.EventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return nil // not a frame we can route; drop, never retry
	}

	msg := OutboundMessage{
		Type:       ev.Type,
		Sport:      payload.Sport,
		ExternalID: payload.ExternalID,
		Payload:    ev.Payload,
	}
	if payload.Sport != "" {
		h.Broadcast(SportRoom(models.Sport(payload.Sport)), msg)
	}
	if ev.AggregateID != "" {
		h.Broadcast(EventRoom(ev.AggregateID), msg)
	}
	if ev.Type == eventbus.TypeSportsUpdate && payload.Live {
		h.Broadcast(RoomLive, msg)
	}
	return nil
}

// ClientCount reports the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount reports how many rooms have at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown drops every connection and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.dropLocked(c)
	}
}
