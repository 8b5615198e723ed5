package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"daily_video_bot/internal/domain/subscriber"
)

// ErrSubscriberNotFound is returned when no record exists for a chat ID.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// registered_at is stored as ISO-8601 UTC text in every backend.
const timestampLayout = time.RFC3339Nano

const createSubscribersTable = `
CREATE TABLE IF NOT EXISTS subscribers (
    chat_id       BIGINT  PRIMARY KEY,
    registered_at TEXT    NOT NULL,
    cursor        INTEGER NOT NULL DEFAULT -1 CHECK (cursor >= -1)
)`

// Queries use '?' placeholders and are rebound per dialect.
const (
	upsertSubscriberSQL = `INSERT INTO subscribers (chat_id, registered_at, cursor) VALUES (?, ?, -1)
ON CONFLICT (chat_id) DO UPDATE SET registered_at = excluded.registered_at`
	getSubscriberSQL    = `SELECT chat_id, registered_at, cursor FROM subscribers WHERE chat_id = ?`
	advanceCursorSQL    = `UPDATE subscribers SET cursor = ? WHERE chat_id = ?`
	deleteSubscriberSQL = `DELETE FROM subscribers WHERE chat_id = ?`
	listSubscribersSQL  = `SELECT chat_id, registered_at, cursor FROM subscribers ORDER BY chat_id`
)

type dialect struct {
	name        string
	numberedArg bool // $1, $2 instead of ?
}

var (
	postgresDialect = dialect{name: "postgres", numberedArg: true}
	sqliteDialect   = dialect{name: "sqlite"}
)

func (d dialect) rebind(query string) string {
	if !d.numberedArg {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLSubscriberRepository implements subscriber.Repository over database/sql.
type SQLSubscriberRepository struct {
	db      *sql.DB
	dialect dialect
}

var _ subscriber.Repository = (*SQLSubscriberRepository)(nil)

func NewPostgresSubscriberRepository(db *sql.DB) *SQLSubscriberRepository {
	return &SQLSubscriberRepository{db: db, dialect: postgresDialect}
}

func NewSQLiteSubscriberRepository(db *sql.DB) *SQLSubscriberRepository {
	return &SQLSubscriberRepository{db: db, dialect: sqliteDialect}
}

func (r *SQLSubscriberRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSubscribersTable); err != nil {
		return fmt.Errorf("error creating subscribers table (%s): %w", r.dialect.name, err)
	}
	return nil
}

func (r *SQLSubscriberRepository) Upsert(ctx context.Context, chatID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(upsertSubscriberSQL), chatID, formatTimestamp(now))
	if err != nil {
		return fmt.Errorf("error upserting subscriber: %w", err)
	}
	return nil
}

func (r *SQLSubscriberRepository) Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(getSubscriberSQL), chatID)
	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber: %w", err)
	}
	return s, nil
}

func (r *SQLSubscriberRepository) AdvanceCursor(ctx context.Context, chatID int64, index int) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(advanceCursorSQL), index, chatID)
	if err != nil {
		return fmt.Errorf("error advancing subscriber cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (r *SQLSubscriberRepository) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.rebind(deleteSubscriberSQL), chatID); err != nil {
		return fmt.Errorf("error deleting subscriber: %w", err)
	}
	return nil
}

func (r *SQLSubscriberRepository) ListAll(ctx context.Context) ([]*subscriber.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, listSubscribersSQL)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}
	return subs, nil
}

func (r *SQLSubscriberRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*subscriber.Subscriber, error) {
	var (
		s  subscriber.Subscriber
		ts string
	)
	if err := row.Scan(&s.ChatID, &ts, &s.Cursor); err != nil {
		return nil, err
	}
	at, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	s.RegisteredAt = at
	return &s, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid registered_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
