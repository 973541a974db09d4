// Package memstore is an in-memory Event/History Store. It backs the dev
// "memory" backend and the service tests. Every conditional update runs under
// the store mutex, which gives it the same race semantics as the SQL store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

// Store keeps lobbies, players, punishment rows and the append-only logs in memory.
type Store struct {
	mu          sync.Mutex
	lobbies     map[uuid.UUID]*models.Lobby
	players     map[uuid.UUID]*models.Player
	punishments map[uuid.UUID]*models.LobbyPunishment
	spins       map[spinKey]*models.PunishmentSpinEvent
	hearts      []models.HeartAdjustment
	history     []models.HistoryEvent
	seq         int64

	now func() time.Time
}

type spinKey struct {
	lobby uuid.UUID
	week  int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		lobbies:     make(map[uuid.UUID]*models.Lobby),
		players:     make(map[uuid.UUID]*models.Player),
		punishments: make(map[uuid.UUID]*models.LobbyPunishment),
		spins:       make(map[spinKey]*models.PunishmentSpinEvent),
		now:         time.Now,
	}
}

// SetClock overrides the timestamp source for appended rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutLobby inserts or replaces a lobby row.
func (s *Store) PutLobby(l models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.lobbies[l.ID] = &l
}

// PutPlayer inserts or replaces a player row, bypassing invite checks.
func (s *Store) PutPlayer(p models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.players[p.ID] = &p
}

// PutPunishment inserts or replaces a punishment row.
func (s *Store) PutPunishment(p models.LobbyPunishment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.punishments[p.ID] = &p
}

// HeartAdjustments returns a copy of the heart adjustment log.
func (s *Store) HeartAdjustments() []models.HeartAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HeartAdjustment, len(s.hearts))
	copy(out, s.hearts)
	return out
}

// InsertLobby stores a new lobby.
func (s *Store) InsertLobby(_ context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if _, exists := s.lobbies[l.ID]; exists {
		return apperr.New(apperr.Conflict, "lobby already exists")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	cp := *l
	s.lobbies[l.ID] = &cp
	return nil
}

// CreateLobby stores a new lobby together with its owner's player.
func (s *Store) CreateLobby(_ context.Context, l *models.Lobby, owner *models.Player, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if _, exists := s.lobbies[l.ID]; exists {
		return apperr.New(apperr.Conflict, "lobby already exists")
	}
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	now := s.now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if owner.JoinedAt.IsZero() {
		owner.JoinedAt = now
	}
	owner.LobbyID = l.ID
	l.OwnerID = owner.ID
	lc, pc := *l, *owner
	s.lobbies[l.ID] = &lc
	s.players[owner.ID] = &pc
	if ev != nil {
		ev.LobbyID = l.ID
	}
	s.appendLocked(ev)
	return nil
}

// GetLobby fetches a lobby by ID.
func (s *Store) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "lobby not found")
	}
	cp := *l
	return &cp, nil
}

// ListLobbiesByStatus returns every lobby in one of the given statuses.
func (s *Store) ListLobbiesByStatus(_ context.Context, statuses ...models.SeasonStatus) ([]models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[models.SeasonStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []models.Lobby
	for _, l := range s.lobbies {
		if want[l.Status] {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListPlayers returns the lobby's players in join order.
func (s *Store) ListPlayers(_ context.Context, lobbyID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playersLocked(lobbyID), nil
}

func (s *Store) playersLocked(lobbyID uuid.UUID) []models.Player {
	var out []models.Player
	for _, p := range s.players {
		if p.LobbyID == lobbyID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// GetPlayer fetches a player of the lobby.
func (s *Store) GetPlayer(_ context.Context, lobbyID, playerID uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.LobbyID != lobbyID {
		return nil, apperr.New(apperr.NotFound, "player not found")
	}
	cp := *p
	return &cp, nil
}

// FindPlayerByUser returns the user's player in the lobby.
func (s *Store) FindPlayerByUser(_ context.Context, lobbyID, userID uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.LobbyID == lobbyID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "player not found")
}

// InsertPlayer adds a player. A user may hold one player per lobby.
func (s *Store) InsertPlayer(_ context.Context, p *models.Player, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[p.LobbyID]; !ok {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	for _, other := range s.players {
		if other.LobbyID == p.LobbyID && other.UserID == p.UserID {
			return apperr.WithCode(apperr.Conflict, apperr.CodeUpdateConflict, "user already joined this lobby")
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.now()
	}
	cp := *p
	s.players[p.ID] = &cp
	s.appendLocked(ev)
	return nil
}
