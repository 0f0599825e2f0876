package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collab-room-api/internal/database"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/repository"
	"github.com/noah-isme/collab-room-api/internal/service"
)

type fakeSubscriber struct {
	id       string
	capacity int

	mu        sync.Mutex
	envelopes []Envelope
	drained   atomic.Bool
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{id: uuid.NewString()}
}

func (f *fakeSubscriber) SessionID() string {
	return f.id
}

func (f *fakeSubscriber) Deliver(env Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacity > 0 && len(f.envelopes) >= f.capacity {
		return false
	}
	f.envelopes = append(f.envelopes, env)
	return true
}

func (f *fakeSubscriber) Drain(context.Context) {
	f.drained.Store(true)
}

func (f *fakeSubscriber) events(name string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, env := range f.envelopes {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSubscriber) last(t *testing.T, name string, target interface{}) {
	t.Helper()
	envs := f.events(name)
	require.NotEmpty(t, envs, "no %s event received", name)
	require.NoError(t, envs[len(envs)-1].Decode(target))
}

func (f *fakeSubscriber) errorCodes() []string {
	var codes []string
	for _, env := range f.events(EventError) {
		var payload ErrorPayload
		if err := env.Decode(&payload); err == nil {
			codes = append(codes, payload.Code)
		}
	}
	return codes
}

type testEngine struct {
	engine   *Engine
	bus      *Bus
	rooms    service.RoomService
	identity service.IdentityService
}

func newTestEngine(t *testing.T, cfg Config) testEngine {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	backoff := make([]time.Duration, 12)
	for i := range backoff {
		backoff[i] = time.Duration(i+1) * time.Millisecond
	}
	opts := repository.Options{Retry: repository.RetryPolicy{Backoff: backoff}, Logger: zerolog.Nop()}
	validate := dto.NewValidator()

	rooms := service.NewRoomService(repository.NewRoomStore(db, opts), validate, zerolog.Nop())
	identity := service.NewIdentityService(repository.NewUserStore(db, opts), validate, zerolog.Nop())
	bus := NewBus(zerolog.Nop())

	return testEngine{
		engine:   NewEngine(rooms, identity, bus, validate, cfg, zerolog.Nop()),
		bus:      bus,
		rooms:    rooms,
		identity: identity,
	}
}

func (te testEngine) connect() (*Session, *fakeSubscriber) {
	sub := newFakeSubscriber()
	return te.engine.Connect(sub), sub
}

func (te testEngine) send(t *testing.T, session *Session, event string, payload interface{}) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	te.engine.HandleEvent(context.Background(), session, Inbound{Event: event, Data: data})
}

func (te testEngine) join(t *testing.T, roomID, username string) (*Session, *fakeSubscriber) {
	t.Helper()
	session, sub := te.connect()
	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": roomID, "username": username})
	require.Len(t, sub.events(EventRoomJoined), 1, "join errors: %v", sub.errorCodes())
	return session, sub
}
