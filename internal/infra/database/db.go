package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"daily_video_bot/internal/domain/subscriber"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	sqliteBusyTimeout = 5 * time.Second
)

var ErrUnsupportedDatabaseURL = errors.New("unsupported database url")

// Open picks a subscriber store implementation from the DATABASE_URL scheme:
// postgres:// and postgresql:// use lib/pq, redis:// and rediss:// use go-redis,
// sqlite:// (or a bare file path) uses modernc sqlite.
func Open(ctx context.Context, databaseURL, redisKeyPrefix string) (subscriber.Repository, error) {
	raw := strings.TrimSpace(databaseURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDatabaseURL)
	}

	scheme := ""
	if i := strings.Index(raw, "://"); i > 0 {
		scheme = strings.ToLower(raw[:i])
	}

	switch scheme {
	case "postgres", "postgresql":
		db, err := NewPostgresConnection(raw)
		if err != nil {
			return nil, err
		}
		return NewPostgresSubscriberRepository(db), nil
	case "redis", "rediss":
		return NewRedisSubscriberRepository(ctx, raw, redisKeyPrefix)
	case "sqlite", "file", "":
		db, err := NewSQLiteConnection(sqlitePath(raw))
		if err != nil {
			return nil, err
		}
		return NewSQLiteSubscriberRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedDatabaseURL, scheme)
	}
}

func sqlitePath(raw string) string {
	for _, p := range []string{"sqlite://", "file://"} {
		if strings.HasPrefix(strings.ToLower(raw), p) {
			return raw[len(p):]
		}
	}
	return raw
}

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewSQLiteConnection opens (creating if needed) an SQLite database file in WAL mode
// with full fsync, so every committed write survives a crash.
func NewSQLiteConnection(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}
