package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	blocksKeyPrefix   = "moderation:blocks:"
	blockersKeyPrefix = "moderation:blockers:"
	reportsKey        = "moderation:reports"
)

// RedisStore keeps moderation state in Redis so it survives restarts.
// Each block is written to both direction sets in one transaction.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Block(ctx context.Context, actorID, targetID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, blocksKeyPrefix+actorID, targetID)
		pipe.SAdd(ctx, blockersKeyPrefix+targetID, actorID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("block %s -> %s: %w", actorID, targetID, err)
	}
	return nil
}

func (s *RedisStore) IsBlockedBy(ctx context.Context, actorID, targetID string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, blocksKeyPrefix+targetID, actorID).Result()
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Blocked(ctx context.Context, userID string) ([]string, error) {
	return s.members(ctx, blocksKeyPrefix+userID)
}

func (s *RedisStore) Blockers(ctx context.Context, userID string) ([]string, error) {
	return s.members(ctx, blockersKeyPrefix+userID)
}

func (s *RedisStore) members(ctx context.Context, key string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Report(ctx context.Context, targetID string) (int64, error) {
	n, err := s.rdb.HIncrBy(ctx, reportsKey, targetID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("report %s: %w", targetID, err)
	}
	return n, nil
}

func (s *RedisStore) ReportCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.rdb.HGet(ctx, reportsKey, userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("report count %s: %w", userID, err)
	}
	return n, nil
}

func (s *RedisStore) ListReported(ctx context.Context, threshold int64) ([]ReportEntry, error) {
	all, err := s.rdb.HGetAll(ctx, reportsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	entries := make([]ReportEntry, 0)
	for id, raw := range all {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if n >= threshold {
			entries = append(entries, ReportEntry{UserID: id, Count: n})
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Reset deletes every moderation key. Test hook.
func (s *RedisStore) Reset(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, "moderation:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
