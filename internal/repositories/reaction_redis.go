package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"realtime-chat/internal/models"
)

// Key layout per message:
//
//	reactions:<msg>                  zset of emojis scored by first vote
//	reactions:<msg>:seq              counter feeding the zset scores
//	reactions:<msg>:<emoji>:voters   list of voter ids in vote order
//	reactions:<msg>:<emoji>:names    hash voter id -> display name
func reactionIndexKey(messageID string) string {
	return "reactions:" + messageID
}

func reactionSeqKey(messageID string) string {
	return reactionIndexKey(messageID) + ":seq"
}

func reactionVotersKey(messageID, emoji string) string {
	return reactionIndexKey(messageID) + ":" + emoji + ":voters"
}

func reactionNamesKey(messageID, emoji string) string {
	return reactionIndexKey(messageID) + ":" + emoji + ":names"
}

// voteScript applies a toggle or a remove for one voter atomically.
// KEYS: index, seq, voters, names. ARGV: voter id, voter name, mode, emoji.
var voteScript = redis.NewScript(`
local removed = redis.call('LREM', KEYS[3], 0, ARGV[1])
if removed == 0 and ARGV[3] == 'toggle' then
  redis.call('RPUSH', KEYS[3], ARGV[1])
  redis.call('HSET', KEYS[4], ARGV[1], ARGV[2])
  if not redis.call('ZSCORE', KEYS[1], ARGV[4]) then
    local seq = redis.call('INCR', KEYS[2])
    redis.call('ZADD', KEYS[1], seq, ARGV[4])
  end
  return 1
end
if removed > 0 then
  redis.call('HDEL', KEYS[4], ARGV[1])
end
if redis.call('LLEN', KEYS[3]) == 0 then
  redis.call('DEL', KEYS[3], KEYS[4])
  redis.call('ZREM', KEYS[1], ARGV[4])
end
return -removed
`)

// RedisReactionRepo keeps the reaction ledger in Redis.
type RedisReactionRepo struct {
	client redis.Cmdable
}

// NewRedisReactionRepo constructs a RedisReactionRepo.
func NewRedisReactionRepo(client redis.Cmdable) *RedisReactionRepo {
	return &RedisReactionRepo{client: client}
}

func (r *RedisReactionRepo) Toggle(ctx context.Context, messageID, emoji, voterID, voterName string) ([]models.Reaction, error) {
	if err := r.vote(ctx, messageID, emoji, voterID, voterName, "toggle"); err != nil {
		return nil, err
	}
	return r.ForMessage(ctx, messageID)
}

func (r *RedisReactionRepo) Remove(ctx context.Context, messageID, emoji, voterID string) ([]models.Reaction, error) {
	if err := r.vote(ctx, messageID, emoji, voterID, "", "remove"); err != nil {
		return nil, err
	}
	return r.ForMessage(ctx, messageID)
}

func (r *RedisReactionRepo) vote(ctx context.Context, messageID, emoji, voterID, voterName, mode string) error {
	keys := []string{
		reactionIndexKey(messageID),
		reactionSeqKey(messageID),
		reactionVotersKey(messageID, emoji),
		reactionNamesKey(messageID, emoji),
	}
	if err := voteScript.Run(ctx, r.client, keys, voterID, voterName, mode, emoji).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis reaction %s: %w", mode, err)
	}
	return nil
}

func (r *RedisReactionRepo) ForMessage(ctx context.Context, messageID string) ([]models.Reaction, error) {
	emojis, err := r.client.ZRange(ctx, reactionIndexKey(messageID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := []models.Reaction{}
	if len(emojis) == 0 {
		return out, nil
	}

	voters := make([]*redis.StringSliceCmd, len(emojis))
	names := make([]*redis.MapStringStringCmd, len(emojis))
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, emoji := range emojis {
			voters[i] = pipe.LRange(ctx, reactionVotersKey(messageID, emoji), 0, -1)
			names[i] = pipe.HGetAll(ctx, reactionNamesKey(messageID, emoji))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	for i, emoji := range emojis {
		ids := voters[i].Val()
		if len(ids) == 0 {
			continue
		}
		byID := names[i].Val()
		reaction := models.Reaction{MessageID: messageID, Emoji: emoji, Voters: ids, VoterNames: make([]string, len(ids)), Count: len(ids)}
		for j, id := range ids {
			reaction.VoterNames[j] = byID[id]
		}
		out = append(out, reaction)
	}
	return out, nil
}

func (r *RedisReactionRepo) ForMessages(ctx context.Context, messageIDs []string) (map[string][]models.Reaction, error) {
	out := map[string][]models.Reaction{}
	for _, id := range messageIDs {
		reactions, err := r.ForMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(reactions) > 0 {
			out[id] = reactions
		}
	}
	return out, nil
}

func (r *RedisReactionRepo) DeleteForMessage(ctx context.Context, messageID string) error {
	emojis, err := r.client.ZRange(ctx, reactionIndexKey(messageID), 0, -1).Result()
	if err != nil {
		return err
	}
	keys := []string{reactionIndexKey(messageID), reactionSeqKey(messageID)}
	for _, emoji := range emojis {
		keys = append(keys, reactionVotersKey(messageID, emoji), reactionNamesKey(messageID, emoji))
	}
	return r.client.Del(ctx, keys...).Err()
}

var _ ReactionRepository = (*RedisReactionRepo)(nil)
