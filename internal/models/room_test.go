package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClampMaxParticipants(t *testing.T) {
	require.Equal(t, DefaultMaxParticipants, ClampMaxParticipants(0))
	require.Equal(t, MinParticipants, ClampMaxParticipants(1))
	require.Equal(t, MinParticipants, ClampMaxParticipants(-5))
	require.Equal(t, 42, ClampMaxParticipants(42))
	require.Equal(t, MaxParticipantsCeiling, ClampMaxParticipants(500))
}

func TestAppendChatTrimsToRetention(t *testing.T) {
	var room Room
	for i := 1; i <= 7; i++ {
		room.AppendChat(ChatMessage{ID: fmt.Sprint(i), Message: fmt.Sprintf("m%d", i)}, 5)
	}
	require.Len(t, room.ChatMessages, 5)
	require.Equal(t, "m3", room.ChatMessages[0].Message)
	require.Equal(t, "m7", room.ChatMessages[4].Message)

	tail := room.ChatTail(2)
	require.Len(t, tail, 2)
	require.Equal(t, "m6", tail[0].Message)
	require.Equal(t, "m7", tail[1].Message)
	require.Len(t, room.ChatTail(50), 5)
}

func TestPruneParticipantsKeepsActiveAndRecent(t *testing.T) {
	now := time.Now().UTC()
	room := Room{Participants: []ParticipantPresence{
		{UserID: "active-old", IsActive: true, LastActivityAt: now.Add(-3 * time.Hour)},
		{UserID: "left-old", IsActive: false, LastActivityAt: now.Add(-3 * time.Hour)},
		{UserID: "left-recent", IsActive: false, LastActivityAt: now.Add(-time.Minute)},
	}}

	removed := room.PruneParticipants(now.Add(-time.Hour))
	require.Equal(t, 1, removed)
	require.Len(t, room.Participants, 2)

	_, _, found := room.Participant("left-old")
	require.False(t, found)
	require.Len(t, room.ActiveParticipants(), 1)
}
