package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/cache"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, f *fixture, allowDebug bool) (*Service, *cache.MemorySnapshotCache, *worker.Pool) {
	t.Helper()
	c := cache.NewMemorySnapshotCache()
	pool := worker.New(logrus.New(), 2, 16, time.Second)
	t.Cleanup(pool.Stop)
	return NewService(f.recon, c, pool, NewHub(), logrus.New(), allowDebug), c, pool
}

func livesOf(snap *models.LiveSnapshot, id uuid.UUID) int {
	for _, p := range snap.Lobby.Players {
		if p.ID == id {
			return p.Lives
		}
	}
	return -1
}

func TestReadCachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	svc, _, pool := newService(t, f, false)
	ctx := context.Background()

	first, err := svc.Read(ctx, f.lobby.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, livesOf(first, f.ana.ID))

	_, err = f.store.ApplyHeartAdjustment(ctx, models.HeartAdjustment{LobbyID: f.lobby.ID, PlayerID: f.ana.ID, Delta: -1}, 3, nil)
	require.NoError(t, err)

	cached, err := svc.Read(ctx, f.lobby.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, livesOf(cached, f.ana.ID), "without invalidation the cached entry is served")

	svc.Invalidate(ctx, f.lobby.ID)
	pool.Drain()

	fresh, err := svc.Read(ctx, f.lobby.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, livesOf(fresh, f.ana.ID))
	assert.Equal(t, int64(1), fresh.Version)
}

func TestRefreshCoversEveryCachedOffset(t *testing.T) {
	f := newFixture(t)
	svc, c, pool := newService(t, f, false)
	ctx := context.Background()

	for _, tz := range []int{0, -60, 300} {
		_, err := svc.Read(ctx, f.lobby.ID, tz, false)
		require.NoError(t, err)
	}
	_, err := f.store.ApplyHeartAdjustment(ctx, models.HeartAdjustment{LobbyID: f.lobby.ID, PlayerID: f.bo.ID, Delta: 1}, 3, nil)
	require.NoError(t, err)

	svc.Invalidate(ctx, f.lobby.ID)
	pool.Drain()

	for _, tz := range []int{0, -60, 300} {
		snap, ok, err := c.Get(ctx, f.lobby.ID, tz)
		require.NoError(t, err)
		require.True(t, ok, "offset %d refreshed", tz)
		assert.Equal(t, 3, livesOf(snap, f.bo.ID))
	}
}

func TestStaleComputeNeverOverwritesRefresh(t *testing.T) {
	f := newFixture(t)
	svc, c, pool := newService(t, f, false)
	ctx := context.Background()

	// a reader computed before the mutation
	stale, err := f.recon.Compute(ctx, f.lobby.ID, 0)
	require.NoError(t, err)
	stale.Version, _ = c.Generation(ctx, f.lobby.ID)

	_, err = f.store.ApplyHeartAdjustment(ctx, models.HeartAdjustment{LobbyID: f.lobby.ID, PlayerID: f.ana.ID, Delta: -2}, 3, nil)
	require.NoError(t, err)
	svc.Invalidate(ctx, f.lobby.ID)
	pool.Drain()

	stored, err := c.Save(ctx, f.lobby.ID, 0, stale)
	require.NoError(t, err)
	assert.False(t, stored)

	snap, err := svc.Read(ctx, f.lobby.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, livesOf(snap, f.ana.ID))
}

func TestDebugReadBypassesCache(t *testing.T) {
	f := newFixture(t)
	svc, c, _ := newService(t, f, true)
	ctx := context.Background()

	_, err := svc.Read(ctx, f.lobby.ID, 0, true)
	require.NoError(t, err)
	offsets, err := c.Offsets(ctx, f.lobby.ID)
	require.NoError(t, err)
	assert.Empty(t, offsets, "debug reads never save")

	_, err = svc.Read(ctx, f.lobby.ID, 0, false)
	require.NoError(t, err)
	_, err = f.store.ApplyHeartAdjustment(ctx, models.HeartAdjustment{LobbyID: f.lobby.ID, PlayerID: f.ana.ID, Delta: -1}, 3, nil)
	require.NoError(t, err)

	debug, err := svc.Read(ctx, f.lobby.ID, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, livesOf(debug, f.ana.ID))
}

func TestDebugIgnoredWhenDisabled(t *testing.T) {
	f := newFixture(t)
	svc, c, _ := newService(t, f, false)
	ctx := context.Background()

	_, err := svc.Read(ctx, f.lobby.ID, 0, true)
	require.NoError(t, err)
	offsets, err := c.Offsets(ctx, f.lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, offsets)
}

func TestReadRejectsBadOffset(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := newService(t, f, false)
	_, err := svc.Read(context.Background(), f.lobby.ID, 900, false)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestRefreshNotifiesWatchers(t *testing.T) {
	f := newFixture(t)
	svc, _, pool := newService(t, f, false)

	ch, unsubscribe := svc.Hub().Subscribe(f.lobby.ID)
	defer unsubscribe()
	assert.Equal(t, 1, svc.Hub().Watchers(f.lobby.ID))

	svc.Invalidate(context.Background(), f.lobby.ID)
	pool.Drain()

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification after refresh")
	}

	unsubscribe()
	assert.Zero(t, svc.Hub().Watchers(f.lobby.ID))
}
