package lobby

import (
	"context"

	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/season"
	"github.com/sirupsen/logrus"
)

// TransitionStage moves the season to status to. Only the owner may call it and
// only transitions in the season table are accepted.
func (s *Service) TransitionStage(ctx context.Context, actor models.Actor, to models.SeasonStatus) (*models.Lobby, error) {
	if _, ok := models.ParseSeasonStatus(string(to)); !ok {
		return nil, apperr.Newf(apperr.InvalidInput, "unknown season status %q", to)
	}
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	l, err := s.store.GetLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	if to != models.StatusCompleted {
		over, err := s.seasonOver(ctx, l)
		if err != nil {
			return nil, err
		}
		if over {
			return nil, errSeasonCompleted()
		}
	}
	if err := s.moveStage(ctx, actor, l, to, "owner"); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.ID)
	l.Status = to
	return l, nil
}

// moveStage validates and applies from l.Status to to, recording a stage_changed event.
func (s *Service) moveStage(ctx context.Context, actor models.Actor, l *models.Lobby, to models.SeasonStatus, reason string) error {
	if err := season.ValidateTransition(l.Mode, l.Status, to); err != nil {
		return err
	}
	ev := s.event(actor, models.EventStageChanged, nil, map[string]interface{}{
		"from":   string(l.Status),
		"to":     string(to),
		"reason": reason,
	})
	return s.store.TransitionStatus(ctx, l.ID, l.Status, to, ev)
}

// followStage is moveStage for transitions implied by another committed
// mutation. A failure is logged; the triggering mutation stands.
func (s *Service) followStage(ctx context.Context, actor models.Actor, l *models.Lobby, to models.SeasonStatus, reason string) {
	if err := s.moveStage(ctx, actor, l, to, reason); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"lobby_id": l.ID,
			"from":     l.Status,
			"to":       to,
		}).Warn("implied stage transition failed")
	}
}
