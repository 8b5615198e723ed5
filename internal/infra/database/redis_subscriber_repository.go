package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"daily_video_bot/internal/domain/subscriber"

	"github.com/go-redis/redis/v8"
)

const defaultRedisKeyPrefix = "videobot"

// KEYS[1] subscriber hash, KEYS[2] index set; ARGV[1] registered_at, ARGV[2] chat id.
var upsertSubscriberScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'cursor', '-1')
redis.call('HSET', KEYS[1], 'registered_at', ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

// KEYS[1] subscriber hash; ARGV[1] new cursor. Returns 0 when the hash is gone.
var advanceCursorScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'cursor', ARGV[1])
return 1
`)

// RedisSubscriberRepository keeps one hash per subscriber plus a set indexing all chat IDs.
// Durability follows the server's persistence settings (appendonly + appendfsync always
// for crash safety).
type RedisSubscriberRepository struct {
	client *redis.Client
	prefix string
}

var _ subscriber.Repository = (*RedisSubscriberRepository)(nil)

func NewRedisSubscriberRepository(ctx context.Context, redisURL, prefix string) (*RedisSubscriberRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisSubscriberRepositoryFromClient(client, prefix), nil
}

func NewRedisSubscriberRepositoryFromClient(client *redis.Client, prefix string) *RedisSubscriberRepository {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisSubscriberRepository{client: client, prefix: prefix}
}

func (r *RedisSubscriberRepository) subscriberKey(chatID int64) string {
	return r.prefix + ":subscriber:" + strconv.FormatInt(chatID, 10)
}

func (r *RedisSubscriberRepository) indexKey() string {
	return r.prefix + ":subscribers"
}

// EnsureSchema only checks connectivity; Redis needs no schema.
func (r *RedisSubscriberRepository) EnsureSchema(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error reaching redis: %w", err)
	}
	return nil
}

func (r *RedisSubscriberRepository) Upsert(ctx context.Context, chatID int64, now time.Time) error {
	keys := []string{r.subscriberKey(chatID), r.indexKey()}
	err := upsertSubscriberScript.Run(ctx, r.client, keys, formatTimestamp(now), chatID).Err()
	if err != nil {
		return fmt.Errorf("error upserting subscriber: %w", err)
	}
	return nil
}

func (r *RedisSubscriberRepository) Get(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	fields, err := r.client.HGetAll(ctx, r.subscriberKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("error getting subscriber: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSubscriberNotFound
	}
	return subscriberFromHash(chatID, fields)
}

func (r *RedisSubscriberRepository) AdvanceCursor(ctx context.Context, chatID int64, index int) error {
	n, err := advanceCursorScript.Run(ctx, r.client, []string{r.subscriberKey(chatID)}, index).Int()
	if err != nil {
		return fmt.Errorf("error advancing subscriber cursor: %w", err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (r *RedisSubscriberRepository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.subscriberKey(chatID))
		pipe.SRem(ctx, r.indexKey(), chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error deleting subscriber: %w", err)
	}
	return nil
}

func (r *RedisSubscriberRepository) ListAll(ctx context.Context) ([]*subscriber.Subscriber, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}

	ids := make([]int64, 0, len(members))
	cmds := make([]*redis.StringStringMapCmd, 0, len(members))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
			cmds = append(cmds, pipe.HGetAll(ctx, r.subscriberKey(id)))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("error loading subscribers: %w", err)
	}

	subs := make([]*subscriber.Subscriber, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("error loading subscriber %d: %w", ids[i], err)
		}
		if len(fields) == 0 {
			// index entry left behind by a partially applied delete
			continue
		}
		s, err := subscriberFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (r *RedisSubscriberRepository) Close() error {
	return r.client.Close()
}

func subscriberFromHash(chatID int64, fields map[string]string) (*subscriber.Subscriber, error) {
	cursor, err := strconv.Atoi(fields["cursor"])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor for subscriber %d: %w", chatID, err)
	}
	at, err := parseTimestamp(fields["registered_at"])
	if err != nil {
		return nil, err
	}
	return &subscriber.Subscriber{ChatID: chatID, RegisteredAt: at, Cursor: cursor}, nil
}
