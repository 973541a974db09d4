// Package lobby applies lobby mutations: owner actions, player actions and the
// scheduled season jobs. Every mutation is validated before it touches the
// store, applied as a conditional update, and followed by a snapshot refresh.
package lobby

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/season"
	"github.com/jason-s-yu/heartline/internal/snapshot"
	"github.com/jason-s-yu/heartline/internal/week"
	"github.com/sirupsen/logrus"
)

// Store is the Event/History Store the service mutates.
type Store interface {
	snapshot.Source

	CreateLobby(ctx context.Context, l *models.Lobby, owner *models.Player, ev *models.HistoryEvent) error
	ListLobbiesByStatus(ctx context.Context, statuses ...models.SeasonStatus) ([]models.Lobby, error)
	TransitionStatus(ctx context.Context, lobbyID uuid.UUID, from, to models.SeasonStatus, ev *models.HistoryEvent) error
	TransferOwnership(ctx context.Context, lobbyID, from, to uuid.UUID, ev *models.HistoryEvent) error
	AccrueAnte(ctx context.Context, lobbyID uuid.UUID, week, perWeek int, ev *models.HistoryEvent) (bool, error)
	ClaimWeekEvaluation(ctx context.Context, lobbyID uuid.UUID, week int) (bool, error)

	GetPlayer(ctx context.Context, lobbyID, playerID uuid.UUID) (*models.Player, error)
	FindPlayerByUser(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Player, error)
	InsertPlayer(ctx context.Context, p *models.Player, ev *models.HistoryEvent) error
	SetReady(ctx context.Context, lobbyID, playerID uuid.UUID, ready bool, ev *models.HistoryEvent) error
	ApplyHeartAdjustment(ctx context.Context, adj models.HeartAdjustment, maxLives int, ev *models.HistoryEvent) (models.HeartResult, error)
	EnterSuddenDeath(ctx context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error)
	KnockOut(ctx context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error)
	AppendHistory(ctx context.Context, ev *models.HistoryEvent) error

	ListPunishments(ctx context.Context, lobbyID uuid.UUID, week int) ([]models.LobbyPunishment, error)
	GetSpinEvent(ctx context.Context, lobbyID uuid.UUID, week int) (*models.PunishmentSpinEvent, error)
	InsertPunishment(ctx context.Context, p *models.LobbyPunishment, ev *models.HistoryEvent) error
	RecordSpin(ctx context.Context, spin *models.PunishmentSpinEvent, ev *models.HistoryEvent) error
	LockPunishment(ctx context.Context, lobbyID, itemID uuid.UUID, ev *models.HistoryEvent) (*models.LobbyPunishment, error)
	UnlockPunishment(ctx context.Context, lobbyID uuid.UUID, week int, ev *models.HistoryEvent) (*models.LobbyPunishment, error)
	ResolveActivePunishments(ctx context.Context, lobbyID uuid.UUID, ev *models.HistoryEvent) (int, error)
}

// Invalidator is notified after every committed mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, lobbyID uuid.UUID)
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	MaxLives     int
	HistoryLimit int
	Now          func() time.Time
	// Pick returns a uniform index in [0, n) for punishment spins.
	Pick func(n int) int
}

// Service is the lobby mutation layer.
type Service struct {
	store     Store
	snapshots Invalidator
	weeks     *week.Resolver
	logger    logrus.FieldLogger

	maxLives     int
	historyLimit int
	now          func() time.Time
	pick         func(n int) int
}

func NewService(store Store, snapshots Invalidator, logger logrus.FieldLogger, opts Options) *Service {
	if opts.MaxLives <= 0 {
		opts.MaxLives = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pick == nil {
		opts.Pick = rand.Intn
	}
	weeks := week.NewResolver(store)
	weeks.Now = opts.Now
	return &Service{
		store:        store,
		snapshots:    snapshots,
		weeks:        weeks,
		logger:       logger,
		maxLives:     opts.MaxLives,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
		pick:         opts.Pick,
	}
}

// MaxLives is the configured life cap.
func (s *Service) MaxLives() int {
	return s.maxLives
}

func requireMember(actor models.Actor) error {
	if actor.System {
		return nil
	}
	if actor.UserID == uuid.Nil {
		return apperr.New(apperr.Unauthorized, "authentication required")
	}
	if !actor.IsMember {
		return apperr.New(apperr.Forbidden, "not a member of this lobby")
	}
	return nil
}

func requireOwner(actor models.Actor) error {
	if err := requireMember(actor); err != nil {
		return err
	}
	if !actor.IsOwner {
		return apperr.New(apperr.Forbidden, "only the lobby owner can do this")
	}
	return nil
}

// mutableLobby loads the lobby and rejects seasons that are over, including
// a knockout whose completion has not been written yet.
func (s *Service) mutableLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	over, err := s.seasonOver(ctx, l)
	if err != nil {
		return nil, err
	}
	if over {
		return nil, errSeasonCompleted()
	}
	return l, nil
}

func (s *Service) seasonOver(ctx context.Context, l *models.Lobby) (bool, error) {
	if l.Status == models.StatusCompleted {
		return true, nil
	}
	players, err := s.store.ListPlayers(ctx, l.ID)
	if err != nil {
		return false, err
	}
	return season.SeasonOver(l, players), nil
}

func errSeasonCompleted() error {
	return apperr.WithCode(apperr.Conflict, apperr.CodeSeasonCompleted, "season is already completed")
}

func (s *Service) event(actor models.Actor, typ models.HistoryEventType, target *uuid.UUID, payload map[string]interface{}) *models.HistoryEvent {
	return &models.HistoryEvent{
		LobbyID:  actor.LobbyID,
		ActorID:  actor.HistoryActor(),
		TargetID: target,
		Type:     typ,
		Payload:  payload,
	}
}

func (s *Service) invalidate(ctx context.Context, lobbyID uuid.UUID) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, lobbyID)
	}
}

func ref(id uuid.UUID) *uuid.UUID {
	return &id
}

// ListHistory returns the latest events of the lobby in append order. limit is
// capped at the configured feed limit.
func (s *Service) ListHistory(ctx context.Context, actor models.Actor, limit int) ([]models.HistoryEvent, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	events, err := s.store.ListHistory(ctx, actor.LobbyID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.HistoryEvent{}
	}
	return events, nil
}
