package realtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/service"
)

func TestJoinEditAndDisconnect(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	alice, aliceSub := te.join(t, "r1", "Alice")

	var joined RoomJoinedPayload
	aliceSub.last(t, EventRoomJoined, &joined)
	require.Equal(t, "r1", joined.RoomID)
	require.Equal(t, "Alice", joined.Username)
	require.Equal(t, alice.ID(), joined.SessionID)
	require.Equal(t, "", joined.CodeContent)
	require.Equal(t, models.DefaultCodeLanguage, joined.CodeLanguage)
	require.Equal(t, 1, joined.CurrentParticipants)
	require.NotEmpty(t, joined.Color)

	var history ChatHistoryPayload
	aliceSub.last(t, EventChatHistory, &history)
	require.Empty(t, history.Messages)

	bob, bobSub := te.join(t, "r1", "Bob")

	var peer PeerPayload
	aliceSub.last(t, EventUserJoined, &peer)
	require.Equal(t, "Bob", peer.Username)
	require.Equal(t, 2, peer.CurrentParticipants)
	require.Empty(t, bobSub.events(EventUserJoined))

	te.send(t, bob, EventCodeChange, map[string]interface{}{"content": "x=1", "language": "javascript"})
	require.Empty(t, bobSub.events(EventCodeChanged))

	var changed CodeChangedPayload
	aliceSub.last(t, EventCodeChanged, &changed)
	require.Equal(t, "x=1", changed.Content)
	require.Equal(t, "javascript", changed.Language)
	require.Equal(t, "Bob", changed.Username)
	require.Equal(t, int64(2), changed.Version)
	require.Equal(t, "Bob", changed.Metadata["author"])
	require.Equal(t, "code-edit", changed.Metadata["actionType"])

	room, err := te.rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, int64(2), room.CodeDocument.Data().Version)

	te.engine.Disconnect(ctx, alice)

	var left PeerPayload
	bobSub.last(t, EventUserDisconnected, &left)
	require.Equal(t, "Alice", left.Username)
	require.Equal(t, 1, left.CurrentParticipants)
	require.Equal(t, 1, te.engine.SessionCount())

	participants, err := te.rooms.ListActiveParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.Equal(t, "Bob", participants[0].Username)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	_, _, err := te.rooms.EnsureRoom(ctx, "r2", models.SystemActor())
	require.NoError(t, err)
	two := 2
	_, err = te.rooms.UpdateRoom(ctx, "r2", dto.RoomUpdateRequest{MaxParticipants: &two}, service.Requester{Admin: true})
	require.NoError(t, err)

	subs := make([]*fakeSubscriber, 3)
	var wg sync.WaitGroup
	for i := range subs {
		session, sub := te.connect()
		subs[i] = sub
		wg.Add(1)
		go func(i int, session *Session) {
			defer wg.Done()
			te.send(t, session, EventJoinRoom, map[string]interface{}{
				"roomId":   "r2",
				"username": []string{"ann", "ben", "cat"}[i],
			})
		}(i, session)
	}
	wg.Wait()

	joined, full := 0, 0
	for _, sub := range subs {
		joined += len(sub.events(EventRoomJoined))
		for _, code := range sub.errorCodes() {
			if code == CodeRoomFull {
				full++
			}
		}
	}
	require.Equal(t, 2, joined)
	require.Equal(t, 1, full)

	room, err := te.rooms.GetRoom(ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, 2, room.CurrentParticipants)
}

func TestJoinRoomRejections(t *testing.T) {
	te := newTestEngine(t, Config{})
	ctx := context.Background()

	session, sub := te.connect()
	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "missing", "username": "amy"})
	require.Equal(t, []string{CodeJoinError}, sub.errorCodes())

	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "bad room!", "username": "amy"})
	te.send(t, session, EventJoinRoom, nil)
	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "r1", "username": "<b>"})
	require.Equal(t, []string{CodeJoinError, CodeInvalidData, CodeInvalidData, CodeInvalidUsername}, sub.errorCodes())

	_, _, err := te.rooms.EnsureRoom(ctx, "r1", models.SystemActor())
	require.NoError(t, err)
	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "r1", "username": "amy"})
	require.Len(t, sub.events(EventRoomJoined), 1)

	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "r1", "username": "amy"})
	codes := sub.errorCodes()
	require.Equal(t, CodeJoinError, codes[len(codes)-1])
}

func TestClosedRoomRequiresRegisteredUser(t *testing.T) {
	te := newTestEngine(t, Config{})
	ctx := context.Background()

	_, _, err := te.rooms.EnsureRoom(ctx, "private", models.SystemActor())
	require.NoError(t, err)
	closed := false
	_, err = te.rooms.UpdateRoom(ctx, "private", dto.RoomUpdateRequest{
		Settings: &dto.RoomSettingsInput{AllowAnonymous: &closed},
	}, service.Requester{Admin: true})
	require.NoError(t, err)

	session, sub := te.connect()
	te.send(t, session, EventJoinRoom, map[string]interface{}{"roomId": "private", "username": "stranger"})
	require.Equal(t, []string{CodeJoinError}, sub.errorCodes())

	_, err = te.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "member"})
	require.NoError(t, err)
	te.join(t, "private", "member")
}

func TestEventsRequireRoom(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})

	session, sub := te.connect()
	te.send(t, session, EventCodeChange, map[string]interface{}{"content": "x"})
	te.send(t, session, EventNoteChange, map[string]interface{}{"content": "x"})
	te.send(t, session, EventDrawEvent, map[string]interface{}{"drawingData": map[string]interface{}{"a": 1}})
	te.send(t, session, EventChatMessage, map[string]interface{}{"message": "hi"})
	te.send(t, session, EventPresenceUpdate, map[string]interface{}{"isActive": true})
	te.send(t, session, EventLeaveRoom, nil)

	require.Equal(t, []string{
		CodeNotInRoom, CodeNotInRoom, CodeNotInRoom, CodeNotInRoom, CodeNotInRoom, CodeNotInRoom,
	}, sub.errorCodes())
}

func TestPingAndMalformedFrames(t *testing.T) {
	te := newTestEngine(t, Config{})

	session, sub := te.connect()
	te.engine.Handle(context.Background(), session, []byte(`{"event":"ping"}`))
	require.Len(t, sub.events(EventPong), 1)

	te.engine.Handle(context.Background(), session, []byte(`not json`))
	te.engine.Handle(context.Background(), session, []byte(`{"event":"explode"}`))
	require.Equal(t, []string{CodeInvalidData, CodeInvalidData}, sub.errorCodes())
}

func TestChatMessagesReachEveryMember(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	alice, aliceSub := te.join(t, "chat", "alice")
	_, bobSub := te.join(t, "chat", "bob")

	before := len(aliceSub.events(EventChatMessage))
	te.send(t, alice, EventChatMessage, map[string]interface{}{"message": "  <b>hello</b> & bye  "})
	require.Len(t, aliceSub.events(EventChatMessage), before+1)

	var message ChatBroadcastPayload
	bobSub.last(t, EventChatMessage, &message)
	require.Equal(t, "hello & bye", message.Message)
	require.Equal(t, "alice", message.Username)
	require.Equal(t, models.MessageTypeText, message.MessageType)
	require.Equal(t, "chat", message.RoomID)

	te.send(t, alice, EventChatMessage, map[string]interface{}{"message": "   "})
	te.send(t, alice, EventChatMessage, map[string]interface{}{"message": strings.Repeat("a", service.MaxChatMessageRune+1)})
	te.send(t, alice, EventChatMessage, map[string]interface{}{"message": "hi", "messageType": models.MessageTypeSystem})
	require.Equal(t, []string{CodeEmptyMessage, CodeMessageTooLong, CodeInvalidData}, aliceSub.errorCodes())

	user, err := te.identity.GetUserBySessionID(ctx, alice.ID())
	require.NoError(t, err)
	require.Equal(t, 1, user.ActivityStats.Data().TotalMessagesSent)

	// Two join lines and the user message.
	tail, err := te.rooms.GetChatTail(ctx, "chat", 50)
	require.NoError(t, err)
	require.Len(t, tail, 3)
}

func TestNotesAndCanvasBroadcasts(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})

	alice, _ := te.join(t, "docs", "alice")
	_, bobSub := te.join(t, "docs", "bob")

	te.send(t, alice, EventNoteChange, map[string]interface{}{"content": "one two three"})
	var notes NoteChangedPayload
	bobSub.last(t, EventNoteChanged, &notes)
	require.Equal(t, "one two three", notes.Content)
	require.Equal(t, int64(2), notes.Version)
	require.EqualValues(t, 3, notes.Metadata["wordCount"])

	te.send(t, alice, EventDrawEvent, map[string]interface{}{
		"drawingData": map[string]interface{}{"strokes": []int{1, 2}},
	})
	var drawing DrawingUpdatedPayload
	bobSub.last(t, EventDrawingUpdated, &drawing)
	require.Equal(t, "draw", drawing.Action)
	require.Equal(t, int64(2), drawing.Version)
	require.JSONEq(t, `{"strokes":[1,2]}`, string(drawing.DrawingData))

	te.send(t, alice, EventDrawEvent, map[string]interface{}{"action": "clear"})
	te.send(t, alice, EventCodeChange, map[string]interface{}{"content": "x", "language": "cobol"})
	require.Equal(t, []string{CodeInvalidData, CodeCodeUpdateError}, sessionErrors(t, alice))
}

func sessionErrors(t *testing.T, session *Session) []string {
	t.Helper()
	sub, ok := session.sub.(*fakeSubscriber)
	require.True(t, ok)
	return sub.errorCodes()
}

func TestConcurrentNoteEditsProduceDistinctVersions(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	alice, _ := te.join(t, "r6", "alice")
	bob, _ := te.join(t, "r6", "bob")

	room, err := te.rooms.GetRoom(ctx, "r6")
	require.NoError(t, err)
	start := room.NotesDocument.Data().Version

	var wg sync.WaitGroup
	for session, content := range map[*Session]string{alice: "A", bob: "B"} {
		wg.Add(1)
		go func(session *Session, content string) {
			defer wg.Done()
			te.send(t, session, EventNoteChange, map[string]interface{}{"content": content})
		}(session, content)
	}
	wg.Wait()

	room, err = te.rooms.GetRoom(ctx, "r6")
	require.NoError(t, err)
	notes := room.NotesDocument.Data()
	require.Equal(t, start+2, notes.Version)
	require.Contains(t, []string{"A", "B"}, notes.Content)
	expected := map[string]string{"A": "alice", "B": "bob"}[notes.Content]
	require.NotNil(t, notes.LastModifiedBy)
	require.Equal(t, expected, notes.LastModifiedBy.Username)
}

func TestPresenceUpdatesAreCoalesced(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true, PresenceInterval: 50 * time.Millisecond})

	alice, _ := te.join(t, "cursor", "alice")
	_, bobSub := te.join(t, "cursor", "bob")

	for i := 1; i <= 3; i++ {
		te.send(t, alice, EventPresenceUpdate, map[string]interface{}{
			"cursorPosition": map[string]interface{}{"x": i * 10, "y": i},
		})
	}
	require.Len(t, bobSub.events(EventPresenceUpdated), 1)

	require.Eventually(t, func() bool {
		return len(bobSub.events(EventPresenceUpdated)) == 2
	}, time.Second, 10*time.Millisecond)

	var latest PresenceUpdatedPayload
	bobSub.last(t, EventPresenceUpdated, &latest)
	require.Equal(t, models.CursorPosition{X: 30, Y: 3}, latest.CursorPosition)
	require.True(t, latest.IsActive)

	time.Sleep(120 * time.Millisecond)
	require.Len(t, bobSub.events(EventPresenceUpdated), 2)

	te.send(t, alice, EventPresenceUpdate, map[string]interface{}{})
	te.send(t, alice, EventPresenceUpdate, map[string]interface{}{
		"cursorPosition": map[string]interface{}{"x": -1, "y": 0},
	})
	require.Equal(t, []string{CodeInvalidData, CodeInvalidData}, sessionErrors(t, alice))
}

func TestPresenceReactivationRespectsCapacity(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true, PresenceInterval: 20 * time.Millisecond})
	ctx := context.Background()

	_, _, err := te.rooms.EnsureRoom(ctx, "seats", models.SystemActor())
	require.NoError(t, err)
	two := 2
	_, err = te.rooms.UpdateRoom(ctx, "seats", dto.RoomUpdateRequest{MaxParticipants: &two}, service.Requester{Admin: true})
	require.NoError(t, err)

	te.join(t, "seats", "alice")
	carol, carolSub := te.join(t, "seats", "carol")

	te.send(t, carol, EventPresenceUpdate, map[string]interface{}{"isActive": false})
	require.Empty(t, carolSub.errorCodes())
	te.join(t, "seats", "bob")

	time.Sleep(60 * time.Millisecond)
	te.send(t, carol, EventPresenceUpdate, map[string]interface{}{"isActive": true})
	require.Eventually(t, func() bool {
		return len(carolSub.errorCodes()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{CodeRoomFull}, carolSub.errorCodes())

	room, err := te.rooms.GetRoom(ctx, "seats")
	require.NoError(t, err)
	require.Equal(t, 2, room.CurrentParticipants)
	require.LessOrEqual(t, room.CurrentParticipants, room.MaxParticipants)
}

func TestDisconnectWithoutRoomIsQuiet(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})

	session, sub := te.connect()
	require.Equal(t, 1, te.engine.SessionCount())

	te.engine.Disconnect(context.Background(), session)
	te.engine.Disconnect(context.Background(), session)

	require.Empty(t, sub.events(EventError))
	require.Equal(t, 0, te.engine.SessionCount())
}

func TestTakeoverMovesUserBetweenRooms(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	first, firstSub := te.join(t, "r1", "alice")
	_, watcherSub := te.join(t, "r1", "bob")

	second, _ := te.join(t, "r5", "alice")

	require.False(t, first.Info().InRoom())
	require.True(t, second.Info().InRoom())
	require.Contains(t, firstSub.errorCodes(), CodeJoinError)

	var left PeerPayload
	watcherSub.last(t, EventUserLeft, &left)
	require.Equal(t, "alice", left.Username)

	r1, err := te.rooms.ListActiveParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, r1, 1)

	// The replaced connection closing later must not touch the new presence.
	te.engine.Disconnect(ctx, first)
	r5, err := te.rooms.ListActiveParticipants(ctx, "r5")
	require.NoError(t, err)
	require.Len(t, r5, 1)
	require.Equal(t, second.ID(), r5[0].SessionID)
}

func TestTakeoverWithinSameRoomKeepsPresence(t *testing.T) {
	te := newTestEngine(t, Config{AutoCreateRooms: true})
	ctx := context.Background()

	first, _ := te.join(t, "r1", "alice")
	second, _ := te.join(t, "r1", "alice")

	te.engine.Disconnect(ctx, first)

	participants, err := te.rooms.ListActiveParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.Equal(t, second.ID(), participants[0].SessionID)

	te.send(t, second, EventLeaveRoom, nil)
	participants, err = te.rooms.ListActiveParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestColorForUsesPickedColour(t *testing.T) {
	user := models.User{UserID: "u-1", Preferences: datatypes.NewJSONType(models.DefaultPreferences())}
	derived := colorFor(user)
	require.Contains(t, participantPalette, derived)
	require.Equal(t, derived, colorFor(user))

	pick := func(color string) models.User {
		prefs := service.SanitizePreferences(models.DefaultPreferences(), map[string]interface{}{
			"appearance": map[string]interface{}{"cursorColor": color},
		})
		return models.User{UserID: "u-1", Preferences: datatypes.NewJSONType(prefs)}
	}
	require.Equal(t, "#123456", colorFor(pick("#123456")))
	require.Equal(t, models.DefaultCursorColor, colorFor(pick(strings.ToLower(models.DefaultCursorColor))))
	require.Equal(t, derived, colorFor(pick("not-a-colour")))
}
