package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/models"
)

func frame(t *testing.T, kind string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(models.NewEvent(kind, payload))
	require.NoError(t, err)
	return raw
}

func applyAll(t *testing.T, s State, frames ...[]byte) State {
	t.Helper()
	var err error
	for _, f := range frames {
		s, err = ApplyFrame(s, f)
		require.NoError(t, err)
	}
	return s
}

func joined(t *testing.T) State {
	alice := models.Session{ConnectionID: "c1", DisplayName: "alice", CurrentRoomID: "general"}
	bob := models.Session{ConnectionID: "c2", DisplayName: "bob", CurrentRoomID: "general"}
	return applyAll(t, Reconnected(),
		frame(t, models.EventSession, models.SessionPayload{ConnectionID: "c1"}),
		frame(t, models.EventRoomList, []models.RoomSummary{{ID: "general", UserCount: 2}}),
		frame(t, models.EventUserList, []models.Session{alice, bob}),
		frame(t, models.EventMessageHistory, models.HistoryPayload{RoomID: "general", Messages: []models.Message{
			{ID: "m1", Body: "first", RoomID: "general"},
		}}),
	)
}

func TestJoinSequenceBuildsState(t *testing.T) {
	s := joined(t)
	assert.Equal(t, "c1", s.ConnectionID)
	assert.Equal(t, "general", s.CurrentRoomID)
	assert.Len(t, s.Rooms, 1)
	assert.Len(t, s.Users, 2)
	require.Len(t, s.Messages, 1)
	self, ok := s.Self()
	require.True(t, ok)
	assert.Equal(t, "alice", self.DisplayName)
}

func TestMessageReceivedAppendsOnceForCurrentRoom(t *testing.T) {
	s := joined(t)
	m := models.Message{ID: "m2", Body: "hi", RoomID: "general"}
	s = applyAll(t, s,
		frame(t, models.EventMessageReceived, m),
		frame(t, models.EventMessageReceived, m),
		frame(t, models.EventMessageReceived, models.Message{ID: "m3", RoomID: "elsewhere"}),
	)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "m2", s.Messages[1].ID)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	before := joined(t)
	snapshot := append([]models.Message{}, before.Messages...)

	after := applyAll(t, before,
		frame(t, models.EventMessageEdited, models.Message{ID: "m1", Body: "changed", RoomID: "general", Edited: true}),
		frame(t, models.EventTypingNames, models.TypingNamesPayload{RoomID: "general", Names: []string{"bob"}}),
	)

	assert.Equal(t, snapshot, before.Messages)
	assert.Empty(t, before.Typing)
	assert.Equal(t, "changed", after.Messages[0].Body)
}

func TestEditKeepsReactionsAndDeleteRemoves(t *testing.T) {
	s := joined(t)
	reactions := []models.Reaction{{MessageID: "m1", Emoji: "👍", Voters: []string{"c2"}, VoterNames: []string{"bob"}, Count: 1}}
	s = applyAll(t, s,
		frame(t, models.EventReactionChanged, models.ReactionChangedPayload{MessageID: "m1", RoomID: "general", Reactions: reactions}),
		frame(t, models.EventMessageEdited, models.Message{ID: "m1", Body: "edited", RoomID: "general", Edited: true}),
	)
	require.Len(t, s.Messages[0].Reactions, 1)
	assert.Equal(t, "edited", s.Messages[0].Body)

	s = applyAll(t, s, frame(t, models.EventMessageDeleted, models.MessageDeletedPayload{MessageID: "m1", RoomID: "general"}))
	assert.Empty(t, s.Messages)
}

func TestRoomSwitchReplacesMessages(t *testing.T) {
	s := joined(t)
	s = applyAll(t, s,
		frame(t, models.EventRoomJoined, models.Room{ID: "room-1", Name: "side"}),
		frame(t, models.EventMessageHistory, models.HistoryPayload{RoomID: "general", Messages: []models.Message{{ID: "stale"}}}),
		frame(t, models.EventMessageHistory, models.HistoryPayload{RoomID: "room-1", Messages: []models.Message{}}),
	)
	assert.Equal(t, "room-1", s.CurrentRoomID)
	assert.Empty(t, s.Messages)
}

func TestTypingOthersExcludesSelf(t *testing.T) {
	s := joined(t)
	s = applyAll(t, s, frame(t, models.EventTypingNames, models.TypingNamesPayload{RoomID: "general", Names: []string{"alice", "bob"}}))
	assert.Equal(t, []string{"bob"}, s.TypingOthers("general"))

	s = applyAll(t, s, frame(t, models.EventTypingNames, models.TypingNamesPayload{RoomID: "general", Names: []string{}}))
	assert.Empty(t, s.TypingOthers("general"))
	assert.NotContains(t, s.Typing, "general")
}

func TestPresenceEvents(t *testing.T) {
	s := joined(t)
	carol := models.Session{ConnectionID: "c3", DisplayName: "carol", CurrentRoomID: "general"}
	s = applyAll(t, s,
		frame(t, models.EventUserJoined, carol),
		frame(t, models.EventProfileUpdated, models.Session{ConnectionID: "c2", DisplayName: "robert", CurrentRoomID: "general"}),
		frame(t, models.EventUserLeftRoom, models.RoomNotice{User: models.Session{ConnectionID: "c3", DisplayName: "carol", CurrentRoomID: "room-9"}, RoomID: "general"}),
		frame(t, models.EventUserLeft, models.Session{ConnectionID: "c1"}),
	)
	require.Len(t, s.Users, 2)
	assert.Equal(t, "robert", s.Users[0].DisplayName)
	assert.Equal(t, "room-9", s.Users[1].CurrentRoomID)
}

func TestPrivateMessagesKeptSeparately(t *testing.T) {
	s := joined(t)
	pm := models.Message{ID: "p1", Body: "psst", RoomID: models.PrivateRoomID("c1", "c2"), IsPrivate: true}
	s = applyAll(t, s, frame(t, models.EventPrivateMessage, pm), frame(t, models.EventPrivateMessage, pm))
	assert.Len(t, s.Private, 1)
	assert.Len(t, s.Messages, 1)
}

func TestRejectionRecorded(t *testing.T) {
	s := applyAll(t, joined(t), frame(t, models.EventActionRejected, models.ActionRejectedPayload{Event: "edit_message", Reason: "not_owner"}))
	require.NotNil(t, s.LastRejection)
	assert.Equal(t, "not_owner", s.LastRejection.Reason)
}

func TestUnknownAndMalformedLeaveStateAlone(t *testing.T) {
	s := joined(t)
	out, err := ApplyFrame(s, []byte(`{"type":"mystery","payload":{}}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, s, out)

	out, err = ApplyFrame(s, []byte(`{"type":"user_list","payload":"nope"}`))
	require.Error(t, err)
	assert.Equal(t, s, out)

	_, err = ApplyFrame(s, []byte(`garbage`))
	require.Error(t, err)
}

func TestReconnectedStartsEmpty(t *testing.T) {
	s := Reconnected()
	assert.Empty(t, s.ConnectionID)
	assert.Empty(t, s.Messages)
	assert.NotNil(t, s.Typing)
}
