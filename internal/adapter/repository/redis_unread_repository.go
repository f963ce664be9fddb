package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/internal/domain/repository"
	"parley/pkg/errors"
)

// redisUnreadRepository keeps per-user unread counters and lastReadAt
// watermarks in Redis hashes:
//
//	unread:{userID}   chatID -> count
//	lastread:{userID} chatID -> RFC3339Nano
type redisUnreadRepository struct {
	client *redis.Client
}

func NewRedisUnreadRepository(client *redis.Client) repository.UnreadRepository {
	return &redisUnreadRepository{
		client: client,
	}
}

func unreadKey(userID string) string {
	return "unread:" + userID
}

func lastReadKey(userID string) string {
	return "lastread:" + userID
}

func (r *redisUnreadRepository) Increment(ctx context.Context, userID, chatID string) (int64, error) {
	count, err := r.client.HIncrBy(ctx, unreadKey(userID), chatID, 1).Result()
	if err != nil {
		return 0, errors.Internal("Failed to increment unread counter", err)
	}
	return count, nil
}

func (r *redisUnreadRepository) Reset(ctx context.Context, userID, chatID string, readAt time.Time) error {
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, unreadKey(userID), chatID)
	pipe.HSet(ctx, lastReadKey(userID), chatID, readAt.Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Internal("Failed to reset unread counter", err)
	}
	return nil
}

func (r *redisUnreadRepository) Count(ctx context.Context, userID, chatID string) (int64, error) {
	val, err := r.client.HGet(ctx, unreadKey(userID), chatID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Internal("Failed to read unread counter", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errors.Internal("Malformed unread counter", err)
	}
	return count, nil
}

func (r *redisUnreadRepository) Counts(ctx context.Context, userID string) (map[string]int64, error) {
	vals, err := r.client.HGetAll(ctx, unreadKey(userID)).Result()
	if err != nil {
		return nil, errors.Internal("Failed to read unread counters", err)
	}

	counts := make(map[string]int64, len(vals))
	for chatID, val := range vals {
		count, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		counts[chatID] = count
	}

	return counts, nil
}

func (r *redisUnreadRepository) LastReadAt(ctx context.Context, userID, chatID string) (time.Time, error) {
	val, err := r.client.HGet(ctx, lastReadKey(userID), chatID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Internal("Failed to read lastReadAt", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, errors.Internal("Malformed lastReadAt value", err)
	}
	return t, nil
}
