package subscriber

import (
	"context"
	"time"
)

// Repository defines the durable operations on Subscriber records.
// Every method must be durable before it returns.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	// Upsert creates the subscriber with CursorNone, or only refreshes RegisteredAt if it exists.
	Upsert(ctx context.Context, chatID int64, now time.Time) error
	Get(ctx context.Context, chatID int64) (*Subscriber, error)
	// AdvanceCursor returns a not-found error when the record was deleted concurrently.
	AdvanceCursor(ctx context.Context, chatID int64, index int) error
	Delete(ctx context.Context, chatID int64) error
	ListAll(ctx context.Context) ([]*Subscriber, error)
	Close() error
}
