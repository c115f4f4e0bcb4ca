package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-chat/internal/models"
)

// UserRepository keeps durable user records for last-seen history.
type UserRepository interface {
	Upsert(ctx context.Context, user models.User) error
	SetCurrentRoom(ctx context.Context, connID, roomID string) error
	MarkOffline(ctx context.Context, connID string, at time.Time) error
	MarkAllOffline(ctx context.Context, at time.Time) (int, error)
	CountOnline(ctx context.Context) (int, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert writes the user record, replacing profile fields on conflict.
func (r *UserRepo) Upsert(ctx context.Context, user models.User) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users (connection_id, display_name, avatar, status, current_room_id, joined_at)
        VALUES (:connection_id, :display_name, :avatar, :status, :current_room_id, :joined_at)
        ON CONFLICT (connection_id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            avatar = EXCLUDED.avatar,
            status = EXCLUDED.status,
            current_room_id = EXCLUDED.current_room_id`, user)
	return err
}

// SetCurrentRoom records the room a user is in.
func (r *UserRepo) SetCurrentRoom(ctx context.Context, connID, roomID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET current_room_id=$2 WHERE connection_id=$1`, connID, roomID)
	return err
}

// MarkOffline flips a user offline and stamps last_seen.
func (r *UserRepo) MarkOffline(ctx context.Context, connID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status='offline', last_seen=$2 WHERE connection_id=$1`, connID, at)
	return err
}

// MarkAllOffline flips every online user offline.
func (r *UserRepo) MarkAllOffline(ctx context.Context, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status='offline', last_seen=$1 WHERE status='online'`, at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountOnline returns how many users are recorded online.
func (r *UserRepo) CountOnline(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE status='online'`)
	return n, err
}
