package signaling

import (
	"context"
	"sync"
	"time"

	"github.com/expertease/consult-engine/internal/observability/metrics"
	"github.com/expertease/consult-engine/internal/video"
	"github.com/expertease/consult-engine/pkg/logging"
)

// SessionDirectory is the slice of the video manager the relay needs:
// admission checks at connect time and session teardown on end_call.
type SessionDirectory interface {
	Authorize(ctx context.Context, roomID, actorID string) (*video.Session, string, error)
	End(ctx context.Context, appointmentID, actorID string) (*video.Session, error)
}

// Hub fans signaling frames out to everyone else in a room. It holds no call
// state beyond room membership; SDP and ICE payloads pass through opaquely.
type Hub struct {
	directory  SessionDirectory
	metrics    *metrics.EngineMetrics
	logger     *logging.Logger
	sendBuffer int

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates a signaling hub. sendBuffer is the per-client outbound queue
// depth; a client that falls that far behind is disconnected.
func NewHub(directory SessionDirectory, m *metrics.EngineMetrics, logger *logging.Logger, sendBuffer int) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Hub{
		directory:  directory,
		metrics:    m,
		logger:     logger,
		sendBuffer: sendBuffer,
		rooms:      make(map[string]map[*Client]struct{}),
	}
}

// register adds the client to its room and tells everyone. live steers the
// waiting cue the joiner sees.
func (h *Hub) register(c *Client, live bool) {
	h.mu.Lock()
	room, ok := h.rooms[c.roomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.roomID] = room
	}
	room[c] = struct{}{}
	workerPresent := false
	for other := range room {
		if other != c && other.role == "worker" {
			workerPresent = true
		}
	}
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Info("signaling: participant joined",
		"room", c.roomID, "actor_id", c.actorID, "role", c.role)

	h.broadcastExcept(c.roomID, c, Envelope{
		Event: EventUserJoined, Room: c.roomID, From: c.actorID, Role: c.role, Conn: c.id,
	})

	switch {
	case c.role == "worker" && !live:
		c.enqueue(Envelope{Event: EventWaitingForOTP, Room: c.roomID})
	case c.role == "patient" && !workerPresent:
		c.enqueue(Envelope{Event: EventWaitingForDoctor, Room: c.roomID})
	}
}

// unregister removes the client and tells the rest of the room. Safe to call
// more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.roomID]
	if ok {
		if _, member := room[c]; !member {
			ok = false
		}
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.metrics.ConnectionClosed()
	h.logger.Info("signaling: participant left", "room", c.roomID, "actor_id", c.actorID)
	h.broadcastExcept(c.roomID, c, Envelope{
		Event: EventUserLeft, Room: c.roomID, From: c.actorID, Role: c.role,
	})
	c.shutdown()
}

// relay dispatches one inbound frame from a connected client.
func (h *Hub) relay(c *Client, env Envelope) {
	h.metrics.ObserveRelayEvent(env.Event)

	switch env.Event {
	case EventJoinRoom:
		// Membership is established at connect time; tolerate the explicit
		// event from clients that send it anyway.
		h.logger.Debug("signaling: redundant join_room", "room", c.roomID, "actor_id", c.actorID)

	case EventLeaveRoom:
		h.unregister(c)

	case EventOffer, EventAnswer, EventICE:
		env.Room = c.roomID
		env.From = c.actorID
		env.Role = c.role
		env.Conn = c.id
		if env.To != "" {
			h.sendTo(c.roomID, env.To, c, env)
			return
		}
		h.broadcastExcept(c.roomID, c, env)

	case EventChat:
		env.Room = c.roomID
		env.From = c.actorID
		env.Role = c.role
		env.Timestamp = time.Now().UTC().Format(time.RFC3339)
		h.broadcast(c.roomID, env)

	case EventStartCall:
		if c.role != "worker" {
			c.enqueue(errorEnvelope("only the doctor can start the call"))
			return
		}
		h.broadcast(c.roomID, Envelope{Event: EventCallStarted, Room: c.roomID, From: c.actorID})

	case EventEndCall:
		if _, err := h.directory.End(context.Background(), c.appointmentID, c.actorID); err != nil {
			h.logger.Error("signaling: end_call failed",
				"error", err, "room", c.roomID, "actor_id", c.actorID)
			c.enqueue(errorEnvelope("could not end the call"))
		}
		// AnnounceCallEnded delivers call_ended and clears the room.

	default:
		c.enqueue(errorEnvelope("unknown event"))
	}
}

// AnnounceCallEnded broadcasts call_ended and evicts every participant. The
// video manager calls this on any teardown path, including cancellations that
// never touched a socket.
func (h *Hub) AnnounceCallEnded(roomID string) {
	h.broadcast(roomID, Envelope{Event: EventCallEnded, Room: roomID})

	h.mu.Lock()
	room := h.rooms[roomID]
	delete(h.rooms, roomID)
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		h.metrics.ConnectionClosed()
		c.shutdown()
	}
	if len(members) > 0 {
		h.logger.Info("signaling: room closed", "room", roomID, "participants", len(members))
	}
}

// Occupancy returns how many participants a room currently has.
func (h *Hub) Occupancy(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) broadcast(roomID string, env Envelope) {
	h.broadcastExcept(roomID, nil, env)
}

// sendTo delivers a frame to the connections addressed by to: a connection id
// matches one socket, an actor id matches every socket that actor holds. A
// stale address is dropped quietly; WebRTC renegotiates around the gap.
func (h *Hub) sendTo(roomID, to string, from *Client, env Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, 2)
	for c := range h.rooms[roomID] {
		if c != from && (c.id == to || c.actorID == to) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.Debug("signaling: no such target", "room", roomID, "to", to, "event", env.Event)
		return
	}
	for _, c := range targets {
		if !c.enqueue(env) {
			h.logger.Error("signaling: dropping slow participant",
				"room", roomID, "actor_id", c.actorID, "event", env.Event)
			h.unregister(c)
		}
	}
}

func (h *Hub) broadcastExcept(roomID string, except *Client, env Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(env) {
			h.logger.Error("signaling: dropping slow participant",
				"room", roomID, "actor_id", c.actorID, "event", env.Event)
			h.unregister(c)
		}
	}
}
