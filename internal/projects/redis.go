package projects

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
)

// KEYS[1] = byname hash, KEYS[2] = id->name hash, KEYS[3] = order list
// ARGV[1] = normalized name, ARGV[2] = display name, ARGV[3] = id
var upsertScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
if redis.call('HSETNX', KEYS[2], ARGV[3], ARGV[2]) == 1 then
  redis.call('RPUSH', KEYS[3], ARGV[3])
else
  redis.call('HSET', KEYS[2], ARGV[3], ARGV[2])
end
return 1
`)

// RedisStore shares the index between plugin replicas.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "hyperiot:projects"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) byNameKey() string { return s.prefix + ":byname" }
func (s *RedisStore) namesKey() string  { return s.prefix + ":names" }
func (s *RedisStore) orderKey() string  { return s.prefix + ":order" }

func (s *RedisStore) Upsert(ctx context.Context, projects []hyperiot.Project) error {
	keys := []string{s.byNameKey(), s.namesKey(), s.orderKey()}
	for _, p := range projects {
		if err := upsertScript.Run(ctx, s.rdb, keys, NormalizeName(p.Name), p.Name, p.ID.String()).Err(); err != nil {
			return fmt.Errorf("upsert project %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (hyperiot.ProjectID, bool, error) {
	id, err := s.rdb.HGet(ctx, s.byNameKey(), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hyperiot.ProjectID(id), true, nil
}

func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.namesKey(), ids...).Result()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(vals))
	for _, v := range vals {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
