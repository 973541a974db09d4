package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
)

type memKey struct {
	lobby uuid.UUID
	tz    int
}

// MemorySnapshotCache is the in-process counterpart of RedisSnapshotCache with
// identical versioning rules.
type MemorySnapshotCache struct {
	mu        sync.Mutex
	snapshots map[memKey]models.LiveSnapshot
	gens      map[uuid.UUID]int64
	offsets   map[uuid.UUID]map[int]struct{}
}

// NewMemorySnapshotCache returns an empty cache.
func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{
		snapshots: make(map[memKey]models.LiveSnapshot),
		gens:      make(map[uuid.UUID]int64),
		offsets:   make(map[uuid.UUID]map[int]struct{}),
	}
}

func (c *MemorySnapshotCache) Get(_ context.Context, lobbyID uuid.UUID, tz int) (*models.LiveSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[memKey{lobbyID, tz}]
	if !ok || snap.Version < c.gens[lobbyID] {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *MemorySnapshotCache) Save(_ context.Context, lobbyID uuid.UUID, tz int, snap *models.LiveSnapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Version < c.gens[lobbyID] {
		return false, nil
	}
	key := memKey{lobbyID, tz}
	if cur, ok := c.snapshots[key]; ok && cur.Version > snap.Version {
		return false, nil
	}
	c.snapshots[key] = *snap
	if c.offsets[lobbyID] == nil {
		c.offsets[lobbyID] = make(map[int]struct{})
	}
	c.offsets[lobbyID][tz] = struct{}{}
	return true, nil
}

func (c *MemorySnapshotCache) Invalidate(_ context.Context, lobbyID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[lobbyID]++
	return c.gens[lobbyID], nil
}

func (c *MemorySnapshotCache) Generation(_ context.Context, lobbyID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[lobbyID], nil
}

func (c *MemorySnapshotCache) Offsets(_ context.Context, lobbyID uuid.UUID) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.offsets[lobbyID]))
	for tz := range c.offsets[lobbyID] {
		out = append(out, tz)
	}
	sort.Ints(out)
	return out, nil
}
