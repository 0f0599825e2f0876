package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type deliveryLog struct {
	mu      sync.Mutex
	rooms   []string
	exclude []string
	events  []string
}

func (d *deliveryLog) deliver(roomID string, env Envelope, excludeSessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = append(d.rooms, roomID)
	d.exclude = append(d.exclude, excludeSessionID)
	d.events = append(d.events, env.Event)
}

func (d *deliveryLog) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

func TestRelayMirrorsEnvelopesAcrossNodes(t *testing.T) {
	server := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	nodeA := NewRelay(newClient(), nil, "test", zerolog.Nop())
	nodeB := NewRelay(newClient(), nil, "test", zerolog.Nop())
	require.True(t, nodeA.Enabled())
	require.NotEqual(t, nodeA.NodeID(), nodeB.NodeID())

	var seenA, seenB deliveryLog
	select {
	case <-nodeA.Start(ctx, seenA.deliver):
	case <-time.After(2 * time.Second):
		t.Fatal("node A never subscribed")
	}
	select {
	case <-nodeB.Start(ctx, seenB.deliver):
	case <-time.After(2 * time.Second):
		t.Fatal("node B never subscribed")
	}

	nodeA.Forward(ctx, "r1", NewEnvelope(EventCodeChanged, CodeChangedPayload{Content: "x"}), "session-1")

	require.Eventually(t, func() bool { return seenB.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"r1"}, seenB.rooms)
	require.Equal(t, []string{"session-1"}, seenB.exclude)
	require.Equal(t, []string{EventCodeChanged}, seenB.events)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, seenA.count(), "a node never re-delivers its own envelopes")
}

func TestRelayDeliversIntoBus(t *testing.T) {
	server := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	busA, busB := NewBus(zerolog.Nop()), NewBus(zerolog.Nop())
	relayA := NewRelay(clientA, nil, "bus", zerolog.Nop())
	relayB := NewRelay(clientB, nil, "bus", zerolog.Nop())
	<-relayA.Start(ctx, func(roomID string, env Envelope, exclude string) { busA.DeliverLocal(roomID, env, exclude) })
	<-relayB.Start(ctx, func(roomID string, env Envelope, exclude string) { busB.DeliverLocal(roomID, env, exclude) })
	busA.AttachRelay(relayA)
	busB.AttachRelay(relayB)

	local, remote := newFakeSubscriber(), newFakeSubscriber()
	busA.Subscribe("r1", local)
	busB.Subscribe("r1", remote)

	busA.Publish(ctx, "r1", NewEnvelope(EventChatMessage, map[string]string{"message": "hi"}), "")

	require.Len(t, local.events(EventChatMessage), 1)
	require.Eventually(t, func() bool {
		return len(remote.events(EventChatMessage)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayDeduplicatesEvents(t *testing.T) {
	relay := NewRelay(nil, nil, "", zerolog.Nop())
	require.False(t, relay.Enabled())

	var seen deliveryLog
	payload, err := json.Marshal(relayEvent{
		ID:     "evt-1",
		Source: "other-node",
		RoomID: "r1",
		Event:  NewEnvelope(EventPong, nil),
	})
	require.NoError(t, err)

	relay.handle(payload, seen.deliver)
	relay.handle(payload, seen.deliver)
	relay.handle([]byte("garbage"), seen.deliver)
	require.Equal(t, 1, seen.count())

	own, err := json.Marshal(relayEvent{ID: "evt-2", Source: relay.NodeID(), RoomID: "r1"})
	require.NoError(t, err)
	relay.handle(own, seen.deliver)
	require.Equal(t, 1, seen.count())

	for i := 0; i < relayDedupeWindow; i++ {
		require.True(t, relay.firstSighting(fmt.Sprintf("id-%d", i)))
	}
	require.True(t, relay.firstSighting("evt-1"), "old ids age out of the window")

	ready := relay.Start(context.Background(), seen.deliver)
	_, open := <-ready
	require.False(t, open)
}
