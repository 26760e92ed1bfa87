package service

import (
	"context"
	"time"

	"github.com/trpi/scheduling-server-go/internal/database"
	"github.com/trpi/scheduling-server-go/internal/sse"
	"github.com/trpi/scheduling-server-go/internal/video"
)

// TxRunner runs fn inside a database transaction. *database.DB satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// Limiter is the sliding-window limiter used for per-key throttling.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time)
}

// SlotLocker guards a slot while a booking is written.
type SlotLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher delivers live events to a user's open streams.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// Mailer sends sign-in links.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, name, link string, expiresIn time.Duration) error
}

// VideoProvider creates meeting rooms for sessions.
type VideoProvider interface {
	CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*video.Room, error)
}
