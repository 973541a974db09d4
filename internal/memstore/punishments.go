package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

// LatestPunishmentWeek returns the highest week with rows and that week's statuses.
func (s *Store) LatestPunishmentWeek(_ context.Context, lobbyID uuid.UUID) (int, []models.WeekStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := 0
	for _, p := range s.punishments {
		if p.LobbyID == lobbyID && p.Week > latest {
			latest = p.Week
		}
	}
	if latest == 0 {
		return 0, nil, nil
	}
	var statuses []models.WeekStatus
	for _, p := range s.punishments {
		if p.LobbyID == lobbyID && p.Week == latest {
			statuses = append(statuses, p.WeekStatus)
		}
	}
	return latest, statuses, nil
}

// ListPunishments returns the week's rows in submission order.
func (s *Store) ListPunishments(_ context.Context, lobbyID uuid.UUID, week int) ([]models.LobbyPunishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weekLocked(lobbyID, week), nil
}

func (s *Store) weekLocked(lobbyID uuid.UUID, week int) []models.LobbyPunishment {
	var out []models.LobbyPunishment
	for _, p := range s.punishments {
		if p.LobbyID == lobbyID && p.Week == week {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// GetSpinEvent returns the week's spin, or nil when the week has not been spun.
func (s *Store) GetSpinEvent(_ context.Context, lobbyID uuid.UUID, week int) (*models.PunishmentSpinEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spin, ok := s.spins[spinKey{lobbyID, week}]
	if !ok {
		return nil, nil
	}
	cp := *spin
	return &cp, nil
}

// InsertPunishment adds a candidate submission.
func (s *Store) InsertPunishment(_ context.Context, p *models.LobbyPunishment, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[p.LobbyID]; !ok {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.WeekStatus == "" {
		p.WeekStatus = models.WeekPendingPunishment
	}
	cp := *p
	s.punishments[p.ID] = &cp
	s.appendLocked(ev)
	return nil
}

// RecordSpin stores the week's spin and marks the winning row as awaiting confirmation.
func (s *Store) RecordSpin(_ context.Context, spin *models.PunishmentSpinEvent, ev *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := spinKey{spin.LobbyID, spin.Week}
	if _, exists := s.spins[key]; exists {
		return raceLost("week has already been spun")
	}
	winner, ok := s.punishments[spin.WinnerItemID]
	if !ok || winner.LobbyID != spin.LobbyID || winner.Week != spin.Week {
		return apperr.New(apperr.NotFound, "punishment not found")
	}
	if spin.SpinID == uuid.Nil {
		spin.SpinID = uuid.New()
	}
	if spin.StartedAt.IsZero() {
		spin.StartedAt = s.now()
	}
	cp := *spin
	s.spins[key] = &cp
	if winner.WeekStatus == models.WeekPendingPunishment {
		winner.WeekStatus = models.WeekPendingConfirmation
	}
	s.appendLocked(ev)
	return nil
}

// LockPunishment makes the item the week's active punishment. It fails with
// Conflict if the week already has an active item.
func (s *Store) LockPunishment(_ context.Context, lobbyID, itemID uuid.UUID, ev *models.HistoryEvent) (*models.LobbyPunishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.punishments[itemID]
	if !ok || item.LobbyID != lobbyID {
		return nil, apperr.New(apperr.NotFound, "punishment not found")
	}
	for _, p := range s.weekLocked(lobbyID, item.Week) {
		if p.WeekStatus == models.WeekActive || p.WeekStatus == models.WeekComplete {
			return nil, raceLost("week already has a locked punishment")
		}
	}
	item.Locked = true
	item.WeekStatus = models.WeekActive
	s.appendLocked(ev)
	cp := *item
	return &cp, nil
}

// UnlockPunishment reverts the week's active item to awaiting confirmation.
func (s *Store) UnlockPunishment(_ context.Context, lobbyID uuid.UUID, week int, ev *models.HistoryEvent) (*models.LobbyPunishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.punishments {
		if p.LobbyID == lobbyID && p.Week == week && p.WeekStatus == models.WeekActive {
			p.Locked = false
			p.WeekStatus = models.WeekPendingConfirmation
			s.appendLocked(ev)
			cp := *p
			return &cp, nil
		}
	}
	return nil, raceLost("week has no locked punishment")
}

// ResolveActivePunishments completes every active row of the lobby and returns how many changed.
func (s *Store) ResolveActivePunishments(_ context.Context, lobbyID uuid.UUID, ev *models.HistoryEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.punishments {
		if p.LobbyID == lobbyID && p.WeekStatus == models.WeekActive {
			p.WeekStatus = models.WeekComplete
			n++
		}
	}
	if n > 0 {
		if ev != nil {
			if ev.Payload == nil {
				ev.Payload = map[string]interface{}{}
			}
			ev.Payload["resolved"] = n
		}
		s.appendLocked(ev)
	}
	return n, nil
}
