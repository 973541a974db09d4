package cache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotCache interface {
	Get(ctx context.Context, lobbyID uuid.UUID, tz int) (*models.LiveSnapshot, bool, error)
	Save(ctx context.Context, lobbyID uuid.UUID, tz int, snap *models.LiveSnapshot) (bool, error)
	Invalidate(ctx context.Context, lobbyID uuid.UUID) (int64, error)
	Generation(ctx context.Context, lobbyID uuid.UUID) (int64, error)
	Offsets(ctx context.Context, lobbyID uuid.UUID) ([]int, error)
}

func exerciseVersioning(t *testing.T, c snapshotCache) {
	ctx := context.Background()
	lobbyID := uuid.New()

	_, ok, err := c.Get(ctx, lobbyID, 0)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	gen, err := c.Generation(ctx, lobbyID)
	require.NoError(t, err)
	assert.Zero(t, gen)

	stored, err := c.Save(ctx, lobbyID, 0, &models.LiveSnapshot{Version: 0, Stage: models.StageActive})
	require.NoError(t, err)
	assert.True(t, stored)

	snap, ok, err := c.Get(ctx, lobbyID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StageActive, snap.Stage)

	// a bump hides the entry and rejects saves computed before it
	gen, err = c.Invalidate(ctx, lobbyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	_, ok, err = c.Get(ctx, lobbyID, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	stored, err = c.Save(ctx, lobbyID, 0, &models.LiveSnapshot{Version: 0})
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = c.Save(ctx, lobbyID, -120, &models.LiveSnapshot{Version: 2, Stage: models.StageCompleted})
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = c.Save(ctx, lobbyID, -120, &models.LiveSnapshot{Version: 1, Stage: models.StageActive})
	require.NoError(t, err)
	assert.False(t, stored, "an older version never overwrites a newer one")

	snap, ok, err = c.Get(ctx, lobbyID, -120)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StageCompleted, snap.Stage)
	assert.Equal(t, int64(2), snap.Version)

	offsets, err := c.Offsets(ctx, lobbyID)
	require.NoError(t, err)
	sort.Ints(offsets)
	assert.Equal(t, []int{-120, 0}, offsets)
}

func TestMemorySnapshotCache(t *testing.T) {
	exerciseVersioning(t, NewMemorySnapshotCache())
}

func TestRedisSnapshotCache(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rdb, err := ConnectRedis(ctx, "localhost:6379", 0)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer rdb.Close()

	prefix := "heartline-test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := rdb.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(context.Background(), keys...)
		}
	})
	exerciseVersioning(t, NewRedisSnapshotCache(rdb, prefix))
}

func TestRedisSnapshotCacheUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	c := NewRedisSnapshotCache(rdb, "x")
	_, err := c.Invalidate(context.Background(), uuid.New())
	assert.Error(t, err)
}
