// Package session is the room/session synchronization engine. A Coordinator
// validates every inbound event against the presence table, applies it to
// the stores and decides who hears about it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"realtime-chat/internal/keylock"
	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/telemetry"
	"realtime-chat/internal/typing"
)

var (
	ErrNotMember      = errors.New("not a member of the room")
	ErrTimeout        = errors.New("store operation timed out")
	ErrDisconnected   = errors.New("no active session")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrUserNotFound   = errors.New("user is not online")
)

const (
	maxNameLength  = 64
	maxEmojiLength = 32
)

// Broadcaster delivers outbound events. A connection is subscribed to at
// most one room; Subscribe moves it.
type Broadcaster interface {
	Subscribe(connID, roomID string)
	Unsubscribe(connID string)
	SendTo(connID string, event models.Event)
	BroadcastRoom(roomID string, event models.Event)
	BroadcastAll(event models.Event)
}

// Auditor records administrative actions.
type Auditor interface {
	Emit(ctx context.Context, rec telemetry.AuditRecord)
}

// Stores groups the durable collections.
type Stores struct {
	Messages  repositories.MessageRepository
	Reactions repositories.ReactionRepository
	Rooms     repositories.RoomRepository
	Users     repositories.UserRepository
}

type Coordinator struct {
	stores   Stores
	presence *presence.Table
	typing   *typing.Aggregator
	out      Broadcaster

	connLocks *keylock.Locker
	msgLocks  *keylock.Locker

	storeTimeout time.Duration
	historyLimit int
	maxBody      int

	logger *zap.Logger
	tracer trace.Tracer
	audit  Auditor
	now    func() time.Time
	newID  func() string
}

type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTracer replaces the global tracer for event spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(c *Coordinator) {
		if a != nil {
			c.audit = a
		}
	}
}

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, telemetry.AuditRecord) {}

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.storeTimeout = d }
}

func WithHistoryLimit(n int) Option {
	return func(c *Coordinator) { c.historyLimit = n }
}

func WithMaxMessageLength(n int) Option {
	return func(c *Coordinator) { c.maxBody = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(stores Stores, table *presence.Table, typers *typing.Aggregator, out Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		stores:       stores,
		presence:     table,
		typing:       typers,
		out:          out,
		connLocks:    keylock.New(),
		msgLocks:     keylock.New(),
		storeTimeout: 2 * time.Second,
		historyLimit: 100,
		maxBody:      2000,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("realtime-chat/session"),
		audit:        nopAuditor{},
		now:          time.Now,
		newID:        newMessageID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newMessageID returns a UUIDv7: a millisecond timestamp prefix followed by
// random bits, so ids sort by creation time and never collide in one instant.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Bootstrap prepares the stores for a fresh process: the general room
// exists, no roster entry or online flag survives from a previous run.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	if err := c.exec(ctx, "rooms.ensure", func(ctx context.Context) error {
		return c.stores.Rooms.Ensure(ctx, models.GeneralRoom(c.now()))
	}); err != nil {
		return err
	}
	if err := c.exec(ctx, "rooms.clear_members", c.stores.Rooms.ClearMembers); err != nil {
		return err
	}
	_, err := call(c, ctx, "users.mark_all_offline", func(ctx context.Context) (int, error) {
		return c.stores.Users.MarkAllOffline(ctx, c.now())
	})
	return err
}

// MarkAllOffline flips every durable user record offline. Used on shutdown.
func (c *Coordinator) MarkAllOffline(ctx context.Context) (int, error) {
	return call(c, ctx, "users.mark_all_offline", func(ctx context.Context) (int, error) {
		return c.stores.Users.MarkAllOffline(ctx, c.now())
	})
}

// call runs one store operation under the store timeout. Domain rejections
// pass through untouched; anything else is counted and logged.
func call[T any](c *Coordinator, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}
	var zero T
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrRoomNotFound),
		errors.Is(err, repositories.ErrNotOwner):
		return zero, err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		observability.IncStoreError(op)
		c.logger.Warn("store timeout", zap.String("op", op), zap.Duration("budget", c.storeTimeout))
		return zero, fmt.Errorf("%s: %w", op, ErrTimeout)
	default:
		observability.IncStoreError(op)
		c.logger.Error("store failure", zap.String("op", op), zap.Error(err))
		return zero, fmt.Errorf("%s: %w", op, err)
	}
}

func (c *Coordinator) exec(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := call(c, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// session returns the live session or ErrDisconnected.
func (c *Coordinator) session(connID string) (models.Session, error) {
	s, ok := c.presence.Get(connID)
	if !ok {
		return models.Session{}, ErrDisconnected
	}
	return s, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidPayload
	}
	return name, nil
}

func (c *Coordinator) cleanBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > c.maxBody {
		return "", ErrInvalidPayload
	}
	return body, nil
}
