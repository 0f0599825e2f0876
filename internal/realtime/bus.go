package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/observability"
)

// Subscriber is an open transport. Deliver must not block; it reports false when the
// envelope was dropped.
type Subscriber interface {
	SessionID() string
	Deliver(env Envelope) bool
}

// Drainer is implemented by subscribers that can flush their outbound queue on shutdown.
type Drainer interface {
	Drain(ctx context.Context)
}

// Forwarder relays locally published envelopes to other nodes.
type Forwarder interface {
	Forward(ctx context.Context, roomID string, env Envelope, excludeSessionID string)
}

// Bus owns the room subscription index and delivers envelopes to subscribers.
type Bus struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]Subscriber
	sessions map[string]Subscriber
	relay    Forwarder
	log      zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		rooms:    make(map[string]map[string]Subscriber),
		sessions: make(map[string]Subscriber),
		log:      logger.With().Str("component", "fanout_bus").Logger(),
	}
}

// AttachRelay enables cross-node forwarding of Publish and BroadcastAll.
func (b *Bus) AttachRelay(relay Forwarder) {
	b.mu.Lock()
	b.relay = relay
	b.mu.Unlock()
}

// Register makes a subscriber addressable by Send.
func (b *Bus) Register(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sub.SessionID()] = sub
}

// Unregister removes the subscriber from every room and from direct addressing.
func (b *Bus) Unregister(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sessions, sessionID)
	for roomID, members := range b.rooms {
		if _, ok := members[sessionID]; !ok {
			continue
		}
		delete(members, sessionID)
		if len(members) == 0 {
			delete(b.rooms, roomID)
		}
	}
}

// Subscribe adds the subscriber to the room.
func (b *Bus) Subscribe(roomID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.rooms[roomID]
	if !ok {
		members = make(map[string]Subscriber)
		b.rooms[roomID] = members
	}
	members[sub.SessionID()] = sub
	b.sessions[sub.SessionID()] = sub
	b.log.Debug().Str("room_id", roomID).Str("session_id", sub.SessionID()).Msg("subscribed")
}

// Unsubscribe removes the session from the room.
func (b *Bus) Unsubscribe(roomID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if members, ok := b.rooms[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(b.rooms, roomID)
		}
	}
	b.log.Debug().Str("room_id", roomID).Str("session_id", sessionID).Msg("unsubscribed")
}

// Publish delivers env to every member of the room except excludeSessionID and forwards it
// to other nodes. It returns the number of local deliveries.
func (b *Bus) Publish(ctx context.Context, roomID string, env Envelope, excludeSessionID string) int {
	delivered := b.DeliverLocal(roomID, env, excludeSessionID)
	b.forward(ctx, roomID, env, excludeSessionID)
	return delivered
}

// BroadcastAll delivers env to every member of the room, sender included.
func (b *Bus) BroadcastAll(ctx context.Context, roomID string, env Envelope) int {
	return b.Publish(ctx, roomID, env, "")
}

// Send delivers env to a single registered session.
func (b *Bus) Send(sessionID string, env Envelope) bool {
	b.mu.RLock()
	sub, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	return b.deliver(sub, env)
}

// DeliverLocal delivers env to local members only. Relays use it for remote envelopes.
func (b *Bus) DeliverLocal(roomID string, env Envelope, excludeSessionID string) int {
	delivered := 0
	for _, sub := range b.snapshot(roomID) {
		if sub.SessionID() == excludeSessionID {
			continue
		}
		if b.deliver(sub, env) {
			delivered++
		}
	}
	return delivered
}

// Members lists the session ids subscribed to the room on this node.
func (b *Bus) Members(roomID string) []string {
	subs := b.snapshot(roomID)
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.SessionID())
	}
	return ids
}

// Drain lets every registered subscriber flush its queue until ctx expires.
func (b *Bus) Drain(ctx context.Context) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.sessions))
	for _, sub := range b.sessions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		drainer, ok := sub.(Drainer)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(d Drainer) {
			defer wg.Done()
			d.Drain(ctx)
		}(drainer)
	}
	wg.Wait()
}

func (b *Bus) snapshot(roomID string) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := b.rooms[roomID]
	subs := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		subs = append(subs, sub)
	}
	return subs
}

func (b *Bus) deliver(sub Subscriber, env Envelope) bool {
	if sub.Deliver(env) {
		observability.FanoutDeliveries().WithLabelValues("delivered").Inc()
		return true
	}
	observability.FanoutDeliveries().WithLabelValues("dropped").Inc()
	b.log.Warn().Str("session_id", sub.SessionID()).Str("event", env.Event).Msg("dropping envelope for slow subscriber")
	return false
}

func (b *Bus) forward(ctx context.Context, roomID string, env Envelope, excludeSessionID string) {
	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay == nil {
		return
	}
	relay.Forward(ctx, roomID, env, excludeSessionID)
}
