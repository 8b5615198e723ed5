package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"daily_video_bot/internal/domain/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises the behaviour every subscriber store must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) subscriber.Repository) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 123000000, time.UTC)

	t.Run("upsert creates with no cursor", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, 100, t0))

		s, err := repo.Get(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), s.ChatID)
		assert.Equal(t, subscriber.CursorNone, s.Cursor)
		assert.True(t, t0.Equal(s.RegisteredAt), "registered_at = %v", s.RegisteredAt)
	})

	t.Run("re-upsert keeps cursor and refreshes registered_at", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, 101, t0))
		require.NoError(t, repo.AdvanceCursor(ctx, 101, 2))

		later := t0.Add(48 * time.Hour)
		require.NoError(t, repo.Upsert(ctx, 101, later))

		s, err := repo.Get(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Cursor)
		assert.True(t, later.Equal(s.RegisteredAt))
	})

	t.Run("non-UTC timestamps are stored as UTC", func(t *testing.T) {
		repo := newRepo(t)
		loc := time.FixedZone("UTC+3", 3*3600)
		require.NoError(t, repo.Upsert(ctx, 102, t0.In(loc)))

		s, err := repo.Get(ctx, 102)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, s.RegisteredAt.Location())
		assert.True(t, t0.Equal(s.RegisteredAt))
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, 999)
		assert.ErrorIs(t, err, ErrSubscriberNotFound)
	})

	t.Run("advance missing", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.AdvanceCursor(ctx, 999, 0)
		assert.ErrorIs(t, err, ErrSubscriberNotFound)
	})

	t.Run("advance to same value succeeds", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, 103, t0))
		require.NoError(t, repo.AdvanceCursor(ctx, 103, 0))
		require.NoError(t, repo.AdvanceCursor(ctx, 103, 0))
	})

	t.Run("delete then register starts fresh", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, 104, t0))
		require.NoError(t, repo.AdvanceCursor(ctx, 104, 3))
		require.NoError(t, repo.Delete(ctx, 104))

		_, err := repo.Get(ctx, 104)
		require.ErrorIs(t, err, ErrSubscriberNotFound)
		assert.ErrorIs(t, repo.AdvanceCursor(ctx, 104, 4), ErrSubscriberNotFound)

		require.NoError(t, repo.Upsert(ctx, 104, t0))
		s, err := repo.Get(ctx, 104)
		require.NoError(t, err)
		assert.Equal(t, subscriber.CursorNone, s.Cursor)
	})

	t.Run("delete missing is a no-op", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Delete(ctx, 12345))
	})

	t.Run("list all", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, 1, t0))
		require.NoError(t, repo.Upsert(ctx, 2, t0))
		require.NoError(t, repo.Upsert(ctx, 3, t0))
		require.NoError(t, repo.AdvanceCursor(ctx, 2, 5))
		require.NoError(t, repo.Delete(ctx, 3))

		subs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		got := map[int64]int{}
		for _, s := range subs {
			got[s.ChatID] = s.Cursor
		}
		assert.Equal(t, map[int64]int{1: -1, 2: 5}, got)
	})

	t.Run("concurrent upserts keep one row", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, repo.Upsert(ctx, 105, t0.Add(time.Duration(i)*time.Second)))
			}(i)
		}
		wg.Wait()

		subs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})
}
