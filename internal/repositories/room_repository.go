package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-chat/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// pq code for foreign_key_violation.
const fkViolation = "23503"

// RoomRepository abstracts the room directory.
type RoomRepository interface {
	Create(ctx context.Context, room models.Room) (models.Room, error)
	// Ensure inserts room unless a room with the same id already exists.
	Ensure(ctx context.Context, room models.Room) error
	Get(ctx context.Context, roomID string) (models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	AddMember(ctx context.Context, roomID, connID string) error
	RemoveMember(ctx context.Context, roomID, connID string) error
	// RemoveMemberEverywhere drops connID from every roster and returns the
	// rooms it was removed from.
	RemoveMemberEverywhere(ctx context.Context, connID string) ([]string, error)
	// ClearMembers empties every roster. Rosters hold connection ids, which
	// do not outlive the process.
	ClearMembers(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

const roomColumns = `id, name, description, creator_connection_id, creator_name, is_private, password_hash, created_at`

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create stores the room and its initial roster atomically.
func (r *RoomRepo) Create(ctx context.Context, room models.Room) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		room.ID, room.Name, room.Description, room.CreatorConnectionID, room.CreatorName, room.IsPrivate, room.PasswordHash, room.CreatedAt); err != nil {
		return models.Room{}, fmt.Errorf("insert room: %w", err)
	}
	for _, member := range room.Members {
		if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, connection_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, room.ID, member); err != nil {
			return models.Room{}, fmt.Errorf("insert room member: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// Ensure inserts the room if it is missing.
func (r *RoomRepo) Ensure(ctx context.Context, room models.Room) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
		room.ID, room.Name, room.Description, room.CreatorConnectionID, room.CreatorName, room.IsPrivate, room.PasswordHash, room.CreatedAt)
	return err
}

// Get returns a room with its roster.
func (r *RoomRepo) Get(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}
	room.Members = []string{}
	if err := r.db.SelectContext(ctx, &room.Members, `SELECT connection_id FROM room_members WHERE room_id=$1 ORDER BY joined_at ASC, connection_id ASC`, roomID); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

type memberRow struct {
	RoomID       string `db:"room_id"`
	ConnectionID string `db:"connection_id"`
}

// List returns every room in creation order with rosters attached.
func (r *RoomRepo) List(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, err
	}
	var members []memberRow
	if err := r.db.SelectContext(ctx, &members, `SELECT room_id, connection_id FROM room_members ORDER BY joined_at ASC, connection_id ASC`); err != nil {
		return nil, err
	}
	byRoom := make(map[string][]string, len(rooms))
	for _, m := range members {
		byRoom[m.RoomID] = append(byRoom[m.RoomID], m.ConnectionID)
	}
	for i := range rooms {
		rooms[i].Members = byRoom[rooms[i].ID]
		if rooms[i].Members == nil {
			rooms[i].Members = []string{}
		}
	}
	return rooms, nil
}

// AddMember puts connID on the roster. Adding an existing member is a no-op.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, connID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_members (room_id, connection_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roomID, connID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
		return ErrRoomNotFound
	}
	return err
}

// RemoveMember takes connID off the roster.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, connID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id=$1 AND connection_id=$2`, roomID, connID)
	return err
}

// RemoveMemberEverywhere clears connID from all rosters.
func (r *RoomRepo) RemoveMemberEverywhere(ctx context.Context, connID string) ([]string, error) {
	var roomIDs []string
	err := r.db.SelectContext(ctx, &roomIDs, `DELETE FROM room_members WHERE connection_id=$1 RETURNING room_id`, connID)
	return roomIDs, err
}

// ClearMembers empties all rosters.
func (r *RoomRepo) ClearMembers(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_members`)
	return err
}

// Count returns the number of rooms.
func (r *RoomRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rooms`)
	return n, err
}
