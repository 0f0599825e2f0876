package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/observability"
)

// Relay mirrors room envelopes across nodes over Redis pub/sub and NATS.
type Relay struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger

	// Events published on both transports arrive twice; remember recent ids.
	mu      sync.Mutex
	seen    map[string]struct{}
	recent  []string
	nextIdx int
}

const relayDedupeWindow = 1024

type relayEvent struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	RoomID  string    `json:"room_id"`
	Exclude string    `json:"exclude,omitempty"`
	Event   Envelope  `json:"event"`
	SentAt  time.Time `json:"sent_at"`
}

// NewRelay builds a relay for the given channel base. Either client may be nil.
func NewRelay(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Relay {
	if channelBase == "" {
		channelBase = "collab"
	}
	return &Relay{
		redis:        redisClient,
		redisChannel: channelBase + ":room-events",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(channelBase, ":", ".") + ".room-events",
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "fanout_relay").Logger(),
		seen:         make(map[string]struct{}, relayDedupeWindow),
		recent:       make([]string, relayDedupeWindow),
	}
}

// Enabled reports whether any transport is configured.
func (r *Relay) Enabled() bool {
	return r != nil && (r.redis != nil || r.nats != nil)
}

// NodeID identifies this process on the relay.
func (r *Relay) NodeID() string {
	return r.nodeID
}

// Forward publishes the envelope to other nodes. Failures are logged, never returned.
func (r *Relay) Forward(ctx context.Context, roomID string, env Envelope, excludeSessionID string) {
	if !r.Enabled() {
		return
	}

	payload, err := json.Marshal(relayEvent{
		ID:      uuid.NewString(),
		Source:  r.nodeID,
		RoomID:  roomID,
		Exclude: excludeSessionID,
		Event:   env,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to marshal relay event")
		return
	}

	if r.redis != nil {
		if err := r.redis.Publish(ctx, r.redisChannel, payload).Err(); err != nil {
			r.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish redis relay event")
		} else {
			observability.FanoutDeliveries().WithLabelValues("relayed").Inc()
		}
	}

	if r.nats != nil {
		if err := r.nats.Publish(r.natsSubject, payload); err != nil {
			r.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish nats relay event")
		} else {
			observability.FanoutDeliveries().WithLabelValues("relayed").Inc()
		}
	}
}

// Start consumes remote envelopes and hands them to deliver until ctx is cancelled.
// The returned channel is closed once the Redis subscription is confirmed, or immediately
// when Redis is not configured.
func (r *Relay) Start(ctx context.Context, deliver func(roomID string, env Envelope, excludeSessionID string)) <-chan struct{} {
	ready := make(chan struct{})
	if !r.Enabled() {
		close(ready)
		return ready
	}

	if r.nats != nil {
		r.consumeNATS(ctx, deliver)
	}
	if r.redis != nil {
		go r.consumeRedis(ctx, deliver, ready)
	} else {
		close(ready)
	}
	return ready
}

func (r *Relay) consumeRedis(ctx context.Context, deliver func(string, Envelope, string), ready chan struct{}) {
	pubsub := r.redis.Subscribe(ctx, r.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		close(ready)
		if !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("redis relay subscription failed")
		}
		return
	}
	close(ready)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			r.logger.Error().Err(err).Msg("redis relay subscription closed")
			return
		}
		r.handle([]byte(msg.Payload), deliver)
	}
}

// consumeNATS uses a plain subscription so every node receives each event.
func (r *Relay) consumeNATS(ctx context.Context, deliver func(string, Envelope, string)) {
	sub, err := r.nats.Subscribe(r.natsSubject, func(msg *nats.Msg) {
		r.handle(msg.Data, deliver)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to subscribe to nats relay subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain nats relay subscription")
		}
	}()
}

func (r *Relay) handle(data []byte, deliver func(string, Envelope, string)) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		r.logger.Warn().Err(err).Msg("invalid relay event")
		return
	}
	if event.Source == r.nodeID || event.RoomID == "" {
		return
	}
	if !r.firstSighting(event.ID) {
		return
	}
	deliver(event.RoomID, event.Event, event.Exclude)
}

func (r *Relay) firstSighting(id string) bool {
	if id == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[id]; ok {
		return false
	}
	if evicted := r.recent[r.nextIdx]; evicted != "" {
		delete(r.seen, evicted)
	}
	r.recent[r.nextIdx] = id
	r.nextIdx = (r.nextIdx + 1) % len(r.recent)
	r.seen[id] = struct{}{}
	return true
}
