package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/models"
)

func testMessage(id, room, sender string, at time.Time) models.Message {
	return models.Message{ID: id, RoomID: room, SenderConnectionID: sender, SenderName: sender, Body: "body " + id, Timestamp: at}
}

func TestMemoryMessageHistoryBoundedAndAscending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		_, err := repo.Append(ctx, testMessage(fmt.Sprintf("m%03d", i), "general", "c1", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, testMessage("other", "room-x", "c1", base))
	require.NoError(t, err)

	history, err := repo.History(ctx, "general", 100)
	require.NoError(t, err)
	require.Len(t, history, 100)
	assert.Equal(t, "m050", history[0].ID)
	assert.Equal(t, "m149", history[99].ID)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
}

func TestMemoryMessageHistoryKeepsInsertionOrderOnTies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepo()
	at := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Append(ctx, testMessage(id, "general", "c1", at))
		require.NoError(t, err)
	}

	history, err := repo.History(ctx, "general", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "b", history[0].ID)
	assert.Equal(t, "c", history[1].ID)
}

func TestMemoryMessageEditOwnership(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepo()
	_, err := repo.Append(ctx, testMessage("m1", "general", "c1", time.Now()))
	require.NoError(t, err)

	_, err = repo.Edit(ctx, "m1", "c2", "hijack", time.Now())
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = repo.Edit(ctx, "missing", "c1", "x", time.Now())
	require.ErrorIs(t, err, ErrMessageNotFound)

	edited, err := repo.Edit(ctx, "m1", "c1", "fixed", time.Now())
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.NotNil(t, edited.EditedAt)

	stored, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "fixed", stored.Body)
}

func TestMemoryMessageDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepo()
	_, err := repo.Append(ctx, testMessage("m1", "general", "c1", time.Now()))
	require.NoError(t, err)

	_, err = repo.Delete(ctx, "m1", "c2")
	require.ErrorIs(t, err, ErrNotOwner)

	deleted, err := repo.Delete(ctx, "m1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "general", deleted.RoomID)

	_, err = repo.Get(ctx, "m1")
	require.ErrorIs(t, err, ErrMessageNotFound)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryReactionToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReactionRepo()

	agg, err := repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	require.Len(t, agg, 1)
	assert.Equal(t, 1, agg[0].Count)
	assert.Equal(t, []string{"c1"}, agg[0].Voters)
	assert.Equal(t, []string{"alice"}, agg[0].VoterNames)

	agg, err = repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	assert.Empty(t, agg)

	all, err := repo.ForMessages(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.NotContains(t, all, "m1")
}

func TestMemoryReactionAggregateKeepsNamesAligned(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReactionRepo()
	_, _ = repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	_, _ = repo.Toggle(ctx, "m1", "🎉", "c2", "bob")
	_, _ = repo.Toggle(ctx, "m1", "👍", "c3", "carol")
	agg, err := repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)

	require.Len(t, agg, 2)
	assert.Equal(t, "🎉", agg[0].Emoji)
	assert.Equal(t, "👍", agg[1].Emoji)
	assert.Equal(t, []string{"c3"}, agg[1].Voters)
	assert.Equal(t, []string{"carol"}, agg[1].VoterNames)

	agg, err = repo.Remove(ctx, "m1", "🎉", "c9")
	require.NoError(t, err)
	assert.Len(t, agg, 2)
}

func TestMemoryReactionConcurrentTogglesFromDifferentVoters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReactionRepo()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.Toggle(ctx, "m1", "🔥", fmt.Sprintf("c%d", i), "user")
		}(i)
	}
	wg.Wait()

	agg, err := repo.ForMessage(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, agg, 1)
	assert.Equal(t, 50, agg[0].Count)
	assert.Len(t, agg[0].VoterNames, 50)
}

func TestMemoryRoomMembership(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoomRepo()
	require.NoError(t, repo.Ensure(ctx, models.GeneralRoom(time.Now())))
	require.NoError(t, repo.Ensure(ctx, models.GeneralRoom(time.Now())))
	_, err := repo.Create(ctx, models.Room{ID: "room-1", Name: "dev", Members: []string{"c1"}})
	require.NoError(t, err)

	require.NoError(t, repo.AddMember(ctx, models.GeneralRoomID, "c2"))
	require.NoError(t, repo.AddMember(ctx, models.GeneralRoomID, "c2"))
	require.NoError(t, repo.AddMember(ctx, "room-1", "c2"))
	require.ErrorIs(t, repo.AddMember(ctx, "nope", "c2"), ErrRoomNotFound)

	general, err := repo.Get(ctx, models.GeneralRoomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, general.Members)

	removed, err := repo.RemoveMemberEverywhere(ctx, "c2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.GeneralRoomID, "room-1"}, removed)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, models.GeneralRoomID, rooms[0].ID)
	assert.Equal(t, []string{"c1"}, rooms[1].Members)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryRoomGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoomRepo()
	_, err := repo.Create(ctx, models.Room{ID: "r", Members: []string{"c1"}})
	require.NoError(t, err)

	room, err := repo.Get(ctx, "r")
	require.NoError(t, err)
	room.Members[0] = "mutated"

	again, err := repo.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, again.Members)
}

func TestMemoryUserOfflineFlips(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	now := time.Now()
	require.NoError(t, repo.Upsert(ctx, models.User{ConnectionID: "c1", DisplayName: "alice", Status: models.StatusOnline, JoinedAt: now}))
	require.NoError(t, repo.Upsert(ctx, models.User{ConnectionID: "c2", DisplayName: "bob", Status: models.StatusOnline, JoinedAt: now}))

	require.NoError(t, repo.MarkOffline(ctx, "c1", now))
	user, ok := repo.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOffline, user.Status)
	require.NotNil(t, user.LastSeen)

	n, err := repo.MarkAllOffline(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	online, err := repo.CountOnline(ctx)
	require.NoError(t, err)
	assert.Zero(t, online)
}
