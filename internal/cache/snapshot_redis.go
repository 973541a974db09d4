package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/redis/go-redis/v9"
)

// saveScript writes the snapshot hash only when its version is not older than
// the stored one nor than the lobby generation, then records the offset.
//
// KEYS[1] snapshot hash, KEYS[2] offsets set, KEYS[3] generation counter
// ARGV[1] version, ARGV[2] payload, ARGV[3] offset
var saveScript = redis.NewScript(`
local v = tonumber(ARGV[1])
local gen = tonumber(redis.call('GET', KEYS[3]) or '0')
if v < gen then
	return 0
end
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > v then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
return 1
`)

// RedisSnapshotCache stores snapshots as {v, data} hashes keyed by lobby and timezone offset.
type RedisSnapshotCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSnapshotCache wraps a connected client. Keys are namespaced by prefix.
func NewRedisSnapshotCache(rdb *redis.Client, prefix string) *RedisSnapshotCache {
	return &RedisSnapshotCache{rdb: rdb, prefix: prefix}
}

func (c *RedisSnapshotCache) snapshotKey(lobbyID uuid.UUID, tz int) string {
	return fmt.Sprintf("%s:snapshot:%s:%d", c.prefix, lobbyID, tz)
}

func (c *RedisSnapshotCache) offsetsKey(lobbyID uuid.UUID) string {
	return fmt.Sprintf("%s:offsets:%s", c.prefix, lobbyID)
}

func (c *RedisSnapshotCache) genKey(lobbyID uuid.UUID) string {
	return fmt.Sprintf("%s:gen:%s", c.prefix, lobbyID)
}

// Get returns the cached snapshot, or false when absent or older than the lobby generation.
func (c *RedisSnapshotCache) Get(ctx context.Context, lobbyID uuid.UUID, tz int) (*models.LiveSnapshot, bool, error) {
	var entry *redis.MapStringStringCmd
	var gen *redis.StringCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		entry = pipe.HGetAll(ctx, c.snapshotKey(lobbyID, tz))
		gen = pipe.Get(ctx, c.genKey(lobbyID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, unavailable(err)
	}

	fields := entry.Val()
	if len(fields) == 0 {
		return nil, false, nil
	}
	version, err := strconv.ParseInt(fields["v"], 10, 64)
	if err != nil {
		return nil, false, nil
	}
	current, err := gen.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, unavailable(err)
	}
	if version < current {
		return nil, false, nil
	}

	var snap models.LiveSnapshot
	if err := json.Unmarshal([]byte(fields["data"]), &snap); err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, err, "decode cached snapshot")
	}
	snap.Version = version
	return &snap, true, nil
}

// Save stores snap under its Version. It reports false when a newer entry or generation exists.
func (c *RedisSnapshotCache) Save(ctx context.Context, lobbyID uuid.UUID, tz int, snap *models.LiveSnapshot) (bool, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, err, "encode snapshot")
	}
	keys := []string{c.snapshotKey(lobbyID, tz), c.offsetsKey(lobbyID), c.genKey(lobbyID)}
	n, err := saveScript.Run(ctx, c.rdb, keys, snap.Version, data, tz).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// Invalidate bumps the lobby generation so every stored snapshot becomes stale.
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, lobbyID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Incr(ctx, c.genKey(lobbyID)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return gen, nil
}

// Generation returns the current lobby generation, zero if never bumped.
func (c *RedisSnapshotCache) Generation(ctx context.Context, lobbyID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(lobbyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return gen, nil
}

// Offsets lists every timezone offset a snapshot was saved under.
func (c *RedisSnapshotCache) Offsets(ctx context.Context, lobbyID uuid.UUID) ([]int, error) {
	members, err := c.rdb.SMembers(ctx, c.offsetsKey(lobbyID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	offsets := make([]int, 0, len(members))
	for _, m := range members {
		if tz, err := strconv.Atoi(m); err == nil {
			offsets = append(offsets, tz)
		}
	}
	return offsets, nil
}

func unavailable(err error) error {
	return apperr.Wrap(apperr.BackendUnavailable, err, "snapshot cache unreachable")
}
