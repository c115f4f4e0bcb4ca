package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-chat/internal/models"
)

// ReactionRepository is the per-(message, emoji) voter ledger. Toggle and
// Remove return the full aggregate for the message after the change.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID, emoji, voterID, voterName string) ([]models.Reaction, error)
	Remove(ctx context.Context, messageID, emoji, voterID string) ([]models.Reaction, error)
	ForMessage(ctx context.Context, messageID string) ([]models.Reaction, error)
	ForMessages(ctx context.Context, messageIDs []string) (map[string][]models.Reaction, error)
	DeleteForMessage(ctx context.Context, messageID string) error
}

// toggleVoteSQL removes the vote if present, otherwise inserts it, in one
// statement.
const toggleVoteSQL = `WITH removed AS (
        DELETE FROM reactions WHERE message_id=$1 AND emoji=$2 AND voter_id=$3 RETURNING voter_id
    )
    INSERT INTO reactions (message_id, emoji, voter_id, voter_name)
    SELECT $1, $2, $3, $4 WHERE NOT EXISTS (SELECT 1 FROM removed)
    ON CONFLICT DO NOTHING`

const voteColumns = `message_id, emoji, voter_id, voter_name`

// ReactionRepo stores one row per vote.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle flips voterID's vote for emoji on messageID.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID, emoji, voterID, voterName string) ([]models.Reaction, error) {
	return r.mutate(ctx, messageID, toggleVoteSQL, messageID, emoji, voterID, voterName)
}

// Remove deletes voterID's vote if present.
func (r *ReactionRepo) Remove(ctx context.Context, messageID, emoji, voterID string) ([]models.Reaction, error) {
	return r.mutate(ctx, messageID, `DELETE FROM reactions WHERE message_id=$1 AND emoji=$2 AND voter_id=$3`, messageID, emoji, voterID)
}

func (r *ReactionRepo) mutate(ctx context.Context, messageID, stmt string, args ...any) ([]models.Reaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("reaction vote: %w", err)
	}
	var votes []models.ReactionVote
	if err = tx.SelectContext(ctx, &votes, `SELECT `+voteColumns+` FROM reactions WHERE message_id=$1 ORDER BY seq ASC`, messageID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return models.AggregateVotes(votes), nil
}

// ForMessage returns the aggregate for one message.
func (r *ReactionRepo) ForMessage(ctx context.Context, messageID string) ([]models.Reaction, error) {
	var votes []models.ReactionVote
	if err := r.db.SelectContext(ctx, &votes, `SELECT `+voteColumns+` FROM reactions WHERE message_id=$1 ORDER BY seq ASC`, messageID); err != nil {
		return nil, err
	}
	return models.AggregateVotes(votes), nil
}

// ForMessages returns aggregates keyed by message id. Messages without
// reactions are absent from the map.
func (r *ReactionRepo) ForMessages(ctx context.Context, messageIDs []string) (map[string][]models.Reaction, error) {
	out := map[string][]models.Reaction{}
	if len(messageIDs) == 0 {
		return out, nil
	}
	var votes []models.ReactionVote
	if err := r.db.SelectContext(ctx, &votes, `SELECT `+voteColumns+` FROM reactions WHERE message_id = ANY($1) ORDER BY seq ASC`, pq.Array(messageIDs)); err != nil {
		return nil, err
	}
	for _, reaction := range models.AggregateVotes(votes) {
		out[reaction.MessageID] = append(out[reaction.MessageID], reaction)
	}
	return out, nil
}

// DeleteForMessage drops every vote on messageID.
func (r *ReactionRepo) DeleteForMessage(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reactions WHERE message_id=$1`, messageID)
	return err
}
