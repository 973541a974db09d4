package snapshot

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/worker"
	"github.com/sirupsen/logrus"
)

// Cache is a versioned snapshot store keyed by lobby and timezone offset.
type Cache interface {
	Get(ctx context.Context, lobbyID uuid.UUID, tz int) (*models.LiveSnapshot, bool, error)
	Save(ctx context.Context, lobbyID uuid.UUID, tz int, snap *models.LiveSnapshot) (bool, error)
	Invalidate(ctx context.Context, lobbyID uuid.UUID) (int64, error)
	Generation(ctx context.Context, lobbyID uuid.UUID) (int64, error)
	Offsets(ctx context.Context, lobbyID uuid.UUID) ([]int, error)
}

// Queue dispatches background refreshes.
type Queue interface {
	Enqueue(key string, task worker.Task) bool
}

// Service serves snapshot reads from the cache and refreshes it after mutations.
type Service struct {
	reconciler *Reconciler
	cache      Cache
	queue      Queue
	hub        *Hub
	logger     logrus.FieldLogger
	allowDebug bool
}

func NewService(r *Reconciler, cache Cache, queue Queue, hub *Hub, logger logrus.FieldLogger, allowDebug bool) *Service {
	return &Service{
		reconciler: r,
		cache:      cache,
		queue:      queue,
		hub:        hub,
		logger:     logger,
		allowDebug: allowDebug,
	}
}

// Hub returns the watcher hub notified after each refresh.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Read returns the snapshot for lobbyID at offset tz. A debug read, when
// enabled, recomputes from source rows and never touches the cache.
func (s *Service) Read(ctx context.Context, lobbyID uuid.UUID, tz int, debug bool) (*models.LiveSnapshot, error) {
	if err := ValidateOffset(tz); err != nil {
		return nil, err
	}
	if debug && s.allowDebug {
		return s.reconciler.Compute(ctx, lobbyID, tz)
	}

	log := s.logger.WithFields(logrus.Fields{"lobby_id": lobbyID, "tz": tz})
	if snap, ok, err := s.cache.Get(ctx, lobbyID, tz); err != nil {
		log.WithError(err).Warn("snapshot cache read failed")
	} else if ok {
		return snap, nil
	}

	// The generation is read before the rows so a concurrent mutation makes this result stale.
	gen, genErr := s.cache.Generation(ctx, lobbyID)
	if genErr != nil {
		log.WithError(genErr).Warn("snapshot generation read failed")
	}
	snap, err := s.reconciler.Compute(ctx, lobbyID, tz)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		snap.Version = gen
		if _, err := s.cache.Save(ctx, lobbyID, tz, snap); err != nil {
			log.WithError(err).Warn("snapshot cache save failed")
		}
	}
	return snap, nil
}

// Version returns the current cache generation of lobbyID.
func (s *Service) Version(ctx context.Context, lobbyID uuid.UUID) (int64, error) {
	return s.cache.Generation(ctx, lobbyID)
}

// Invalidate marks every cached snapshot of lobbyID stale and queues a refresh.
// Failures are logged, never returned.
func (s *Service) Invalidate(ctx context.Context, lobbyID uuid.UUID) {
	log := s.logger.WithField("lobby_id", lobbyID)
	if _, err := s.cache.Invalidate(ctx, lobbyID); err != nil {
		log.WithError(err).Warn("snapshot invalidation failed")
	}
	if !s.queue.Enqueue("refresh:"+lobbyID.String(), func(ctx context.Context) error {
		return s.RefreshNow(ctx, lobbyID)
	}) {
		log.Debug("snapshot refresh already queued or dropped")
	}
}

// RefreshNow recomputes and saves every offset cached for lobbyID, or offset 0
// if none, then notifies watchers.
func (s *Service) RefreshNow(ctx context.Context, lobbyID uuid.UUID) error {
	gen, err := s.cache.Generation(ctx, lobbyID)
	if err != nil {
		return err
	}
	offsets, err := s.cache.Offsets(ctx, lobbyID)
	if err != nil {
		return err
	}
	if len(offsets) == 0 {
		offsets = []int{0}
	}
	for _, tz := range offsets {
		snap, err := s.reconciler.Compute(ctx, lobbyID, tz)
		if err != nil {
			return err
		}
		snap.Version = gen
		if _, err := s.cache.Save(ctx, lobbyID, tz, snap); err != nil {
			return err
		}
	}
	if s.hub != nil {
		s.hub.Notify(lobbyID)
	}
	return nil
}
