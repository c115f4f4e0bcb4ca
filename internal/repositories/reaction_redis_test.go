package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisReactions(t *testing.T) (*RedisReactionRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisReactionRepo(client), mr
}

func TestRedisReactionToggleTwiceLeavesNoRecord(t *testing.T) {
	repo, mr := newTestRedisReactions(t)
	ctx := context.Background()

	agg, err := repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	require.Len(t, agg, 1)
	assert.Equal(t, 1, agg[0].Count)
	assert.Equal(t, []string{"c1"}, agg[0].Voters)
	assert.Equal(t, []string{"alice"}, agg[0].VoterNames)

	agg, err = repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	assert.Empty(t, agg)
	assert.False(t, mr.Exists(reactionVotersKey("m1", "👍")))
	assert.False(t, mr.Exists(reactionNamesKey("m1", "👍")))
}

func TestRedisReactionOrdersEmojisByFirstVote(t *testing.T) {
	repo, _ := newTestRedisReactions(t)
	ctx := context.Background()

	_, err := repo.Toggle(ctx, "m1", "🎉", "c1", "alice")
	require.NoError(t, err)
	_, err = repo.Toggle(ctx, "m1", "👍", "c2", "bob")
	require.NoError(t, err)
	agg, err := repo.Toggle(ctx, "m1", "🎉", "c3", "carol")
	require.NoError(t, err)

	require.Len(t, agg, 2)
	assert.Equal(t, "🎉", agg[0].Emoji)
	assert.Equal(t, []string{"c1", "c3"}, agg[0].Voters)
	assert.Equal(t, []string{"alice", "carol"}, agg[0].VoterNames)
	assert.Equal(t, "👍", agg[1].Emoji)
}

func TestRedisReactionRemoveIsRemoveOnly(t *testing.T) {
	repo, _ := newTestRedisReactions(t)
	ctx := context.Background()

	agg, err := repo.Remove(ctx, "m1", "👍", "c1")
	require.NoError(t, err)
	assert.Empty(t, agg)

	_, err = repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	agg, err = repo.Remove(ctx, "m1", "👍", "c1")
	require.NoError(t, err)
	assert.Empty(t, agg)
}

func TestRedisReactionConcurrentVoters(t *testing.T) {
	repo, _ := newTestRedisReactions(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Toggle(ctx, "m1", "🔥", fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	agg, err := repo.ForMessage(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, agg, 1)
	assert.Equal(t, 20, agg[0].Count)
}

func TestRedisReactionDeleteForMessage(t *testing.T) {
	repo, mr := newTestRedisReactions(t)
	ctx := context.Background()

	_, err := repo.Toggle(ctx, "m1", "👍", "c1", "alice")
	require.NoError(t, err)
	_, err = repo.Toggle(ctx, "m1", "🎉", "c1", "alice")
	require.NoError(t, err)
	_, err = repo.Toggle(ctx, "m2", "👍", "c1", "alice")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteForMessage(ctx, "m1"))
	assert.False(t, mr.Exists(reactionIndexKey("m1")))

	all, err := repo.ForMessages(ctx, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.NotContains(t, all, "m1")
	assert.Len(t, all["m2"], 1)
}
