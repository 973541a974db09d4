package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

func (s *Store) appendLocked(ev *models.HistoryEvent) {
	if ev == nil {
		return
	}
	s.seq++
	ev.Seq = s.seq
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.history = append(s.history, *ev)
}

func raceLost(msg string) error {
	return apperr.WithCode(apperr.Conflict, apperr.CodeUpdateConflict, msg)
}

// AppendHistory appends a standalone audit event.
func (s *Store) AppendHistory(_ context.Context, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ev)
	return nil
}

// ListHistory returns the latest limit events of the lobby in append order.
func (s *Store) ListHistory(_ context.Context, lobbyID uuid.UUID, limit int) ([]models.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEvent
	for _, ev := range s.history {
		if ev.LobbyID == lobbyID {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ListHistoryByType returns every event of the given types in append order.
func (s *Store) ListHistoryByType(_ context.Context, lobbyID uuid.UUID, types ...models.HistoryEventType) ([]models.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[models.HistoryEventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []models.HistoryEvent
	for _, ev := range s.history {
		if ev.LobbyID == lobbyID && want[ev.Type] {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ApplyHeartAdjustment moves the player's lives by adj.Delta clamped to [0, maxLives],
// records the adjustment and appends ev with before/after filled in.
func (s *Store) ApplyHeartAdjustment(_ context.Context, adj models.HeartAdjustment, maxLives int, ev *models.HistoryEvent) (models.HeartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lobbies[adj.LobbyID]
	if !ok {
		return models.HeartResult{}, apperr.New(apperr.NotFound, "lobby not found")
	}
	if l.Status == models.StatusCompleted {
		return models.HeartResult{}, apperr.WithCode(apperr.Conflict, apperr.CodeSeasonCompleted, "season is already completed")
	}
	p, ok := s.players[adj.PlayerID]
	if !ok || p.LobbyID != adj.LobbyID {
		return models.HeartResult{}, apperr.New(apperr.NotFound, "player not found")
	}

	res := models.HeartResult{PlayerID: p.ID, Before: p.Lives}
	p.Lives = min(max(p.Lives+adj.Delta, 0), maxLives)
	res.After = p.Lives
	adj.Applied = res.Applied()

	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = s.now()
	}
	adj.ID = int64(len(s.hearts) + 1)
	s.hearts = append(s.hearts, adj)

	if ev != nil {
		if ev.Payload == nil {
			ev.Payload = map[string]interface{}{}
		}
		ev.Payload["delta"] = adj.Delta
		ev.Payload["applied"] = adj.Applied
		ev.Payload["before"] = res.Before
		ev.Payload["after"] = res.After
		s.appendLocked(ev)
	}
	return res, nil
}

// EnterSuddenDeath flags a zero-lives player. Lives stay at zero. It reports
// false when the player is not eligible, e.g. a concurrent call already did it.
func (s *Store) EnterSuddenDeath(_ context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.LobbyID != lobbyID {
		return false, apperr.New(apperr.NotFound, "player not found")
	}
	if p.Lives != 0 || p.SuddenDeath || p.Eliminated {
		return false, nil
	}
	p.SuddenDeath = true
	s.appendLocked(ev)
	return true, nil
}

// KnockOut marks a zero-lives player as eliminated and appends ev. It reports
// false when the player still has lives or is already out.
func (s *Store) KnockOut(_ context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.LobbyID != lobbyID {
		return false, apperr.New(apperr.NotFound, "player not found")
	}
	if p.Lives != 0 || p.Eliminated {
		return false, nil
	}
	p.Eliminated = true
	s.appendLocked(ev)
	return true, nil
}

// TransitionStatus moves the lobby from one status to another only if it is
// still in from.
func (s *Store) TransitionStatus(_ context.Context, lobbyID uuid.UUID, from, to models.SeasonStatus, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	if l.Status != from {
		return raceLost("lobby status changed concurrently")
	}
	l.Status = to
	s.appendLocked(ev)
	return nil
}

// TransferOwnership hands the lobby to another member if from is still the owner.
func (s *Store) TransferOwnership(_ context.Context, lobbyID, from, to uuid.UUID, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	target, ok := s.players[to]
	if !ok || target.LobbyID != lobbyID {
		return apperr.New(apperr.NotFound, "player not found")
	}
	if l.OwnerID != from {
		return raceLost("lobby owner changed concurrently")
	}
	l.OwnerID = to
	s.appendLocked(ev)
	return nil
}

// SetReady stores the player's ready flag.
func (s *Store) SetReady(_ context.Context, lobbyID, playerID uuid.UUID, ready bool, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.LobbyID != lobbyID {
		return apperr.New(apperr.NotFound, "player not found")
	}
	p.Ready = ready
	s.appendLocked(ev)
	return nil
}

// AccrueAnte adds perWeek to the pot for every week after the last accrued one
// up to week, and records week. It reports false when week was already accrued.
func (s *Store) AccrueAnte(_ context.Context, lobbyID uuid.UUID, week, perWeek int, ev *models.HistoryEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return false, apperr.New(apperr.NotFound, "lobby not found")
	}
	if l.LastAnteWeek >= week {
		return false, nil
	}
	weeks := week - l.LastAnteWeek
	l.LastAnteWeek = week
	l.CashPool += perWeek * weeks
	if ev != nil {
		if ev.Payload == nil {
			ev.Payload = map[string]interface{}{}
		}
		ev.Payload["weeks"] = weeks
		ev.Payload["amount"] = perWeek * weeks
		ev.Payload["pot"] = l.CashPool
	}
	s.appendLocked(ev)
	return true, nil
}

// ClaimWeekEvaluation marks week as evaluated. Only the first caller per week wins.
func (s *Store) ClaimWeekEvaluation(_ context.Context, lobbyID uuid.UUID, week int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return false, apperr.New(apperr.NotFound, "lobby not found")
	}
	if l.LastEvaluatedWeek >= week {
		return false, nil
	}
	l.LastEvaluatedWeek = week
	return true, nil
}
