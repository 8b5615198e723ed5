package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"daily_video_bot/internal/domain/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) subscriber.Repository {
	t.Helper()
	db, err := NewSQLiteConnection(filepath.Join(t.TempDir(), "subscribers.db"))
	require.NoError(t, err)
	repo := NewSQLiteSubscriberRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteSubscriberRepository(t *testing.T) {
	runRepositoryContract(t, newSQLiteRepo)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "users.db")

	db, err := NewSQLiteConnection(path)
	require.NoError(t, err)
	repo := NewSQLiteSubscriberRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.Upsert(ctx, 42, time.Now()))
	require.NoError(t, repo.AdvanceCursor(ctx, 42, 1))
	require.NoError(t, repo.Close())

	db, err = NewSQLiteConnection(path)
	require.NoError(t, err)
	repo = NewSQLiteSubscriberRepository(db)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(ctx))

	s, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cursor)
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	repo := newSQLiteRepo(t)
	assert.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestDialectRebind(t *testing.T) {
	assert.Equal(t,
		"UPDATE subscribers SET cursor = $1 WHERE chat_id = $2",
		postgresDialect.rebind(advanceCursorSQL),
	)
	assert.Equal(t, advanceCursorSQL, sqliteDialect.rebind(advanceCursorSQL))
}

func TestOpenSelectsBackendByScheme(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, raw := range []string{
		"sqlite://" + filepath.Join(dir, "a.db"),
		"file://" + filepath.Join(dir, "b.db"),
		filepath.Join(dir, "c.db"),
	} {
		repo, err := Open(ctx, raw, "")
		require.NoError(t, err, raw)
		_, ok := repo.(*SQLSubscriberRepository)
		assert.True(t, ok, raw)
		require.NoError(t, repo.Close())
	}

	_, err := Open(ctx, "mysql://localhost/db", "")
	assert.ErrorIs(t, err, ErrUnsupportedDatabaseURL)

	_, err = Open(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrUnsupportedDatabaseURL)
}
