package subscriber

import (
	"time"
)

// CursorNone is the cursor of a subscriber that has not received anything yet.
const CursorNone = -1

// Subscriber represents a chat registered for recurring video delivery.
// Corresponds to the 'subscribers' table.
type Subscriber struct {
	ChatID       int64     // Telegram chat ID, primary key
	RegisteredAt time.Time // UTC, refreshed on every /start
	Cursor       int       // Index of the last delivered catalog entry, CursorNone if none
}

// Status is the progress summary shown to a subscriber.
type Status struct {
	ChatID       int64
	RegisteredAt time.Time
	Sent         int
	Total        int
	Remaining    int
	Interval     time.Duration
	NextDelivery time.Time // zero when no timer is armed
}

// NewStatus derives progress counters from a cursor and a catalog size.
func NewStatus(s *Subscriber, total int, interval time.Duration) *Status {
	sent := s.Cursor + 1
	if sent < 0 {
		sent = 0
	}
	remaining := total - sent
	if remaining < 0 {
		remaining = 0
	}
	return &Status{
		ChatID:       s.ChatID,
		RegisteredAt: s.RegisteredAt,
		Sent:         sent,
		Total:        total,
		Remaining:    remaining,
		Interval:     interval,
	}
}
