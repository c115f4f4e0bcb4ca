package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-chat/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotOwner        = errors.New("requester does not own the message")
)

// MessageRepository is the durable message log.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	// History returns the most recent limit messages of a room, oldest first.
	History(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	Edit(ctx context.Context, messageID, requesterID, body string, at time.Time) (models.Message, error)
	Delete(ctx context.Context, messageID, requesterID string) (models.Message, error)
	Count(ctx context.Context) (int, error)
}

const messageColumns = `id, sender_connection_id, sender_name, sender_avatar, body, created_at, room_id, is_private,
        recipient_connection_id, recipient_name, edited, edited_at, file_name, file_type, file_size, file_url`

type messageRow struct {
	models.Message
	FileName string `db:"file_name"`
	FileType string `db:"file_type"`
	FileSize int64  `db:"file_size"`
	FileURL  string `db:"file_url"`
}

func (r messageRow) toModel() models.Message {
	msg := r.Message
	if r.FileName != "" || r.FileURL != "" {
		msg.File = &models.FileDescriptor{Name: r.FileName, MimeType: r.FileType, Size: r.FileSize, URL: r.FileURL}
	}
	return msg
}

func rowsToMessages(rows []messageRow) []models.Message {
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	var file models.FileDescriptor
	if msg.File != nil {
		file = *msg.File
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		msg.ID, msg.SenderConnectionID, msg.SenderName, msg.SenderAvatar, msg.Body, msg.Timestamp, msg.RoomID, msg.IsPrivate,
		msg.RecipientConnectionID, msg.RecipientName, msg.Edited, msg.EditedAt, file.Name, file.MimeType, file.Size, file.URL)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// History returns the newest limit messages in ascending order. seq breaks
// ties between messages written in the same instant.
func (r *MessageRepo) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var rows []messageRow
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT seq, ` + messageColumns + ` FROM messages
            WHERE room_id=$1
            ORDER BY created_at DESC, seq DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, seq ASC`
	if err := r.db.SelectContext(ctx, &rows, query, roomID, limit); err != nil {
		return nil, err
	}
	return rowsToMessages(rows), nil
}

// Edit rewrites the body of a message owned by requesterID.
func (r *MessageRepo) Edit(ctx context.Context, messageID, requesterID, body string, at time.Time) (models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, `UPDATE messages SET body=$3, edited=TRUE, edited_at=$4
        WHERE id=$1 AND sender_connection_id=$2
        RETURNING `+messageColumns, messageID, requesterID, body, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.rejection(ctx, messageID)
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// Delete removes a message owned by requesterID and returns what was removed.
// Reaction rows go with it through the foreign key.
func (r *MessageRepo) Delete(ctx context.Context, messageID, requesterID string) (models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, `DELETE FROM messages WHERE id=$1 AND sender_connection_id=$2
        RETURNING `+messageColumns, messageID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.rejection(ctx, messageID)
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// Count returns the number of stored messages.
func (r *MessageRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`)
	return n, err
}

// rejection tells a missing message apart from one owned by someone else.
func (r *MessageRepo) rejection(ctx context.Context, messageID string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}
	return ErrNotOwner
}
