package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/season"
	"github.com/sirupsen/logrus"
)

// ValidDelta reports whether delta is an accepted heart adjustment.
func ValidDelta(delta int) bool {
	switch delta {
	case -3, -2, -1, 1, 2, 3:
		return true
	}
	return false
}

// AdjustHearts changes a player's lives by delta. Only the owner may call it.
func (s *Service) AdjustHearts(ctx context.Context, actor models.Actor, playerID uuid.UUID, delta int) (*models.HeartResult, error) {
	if !ValidDelta(delta) {
		return nil, apperr.WithCode(apperr.InvalidInput, apperr.CodeInvalidDelta, "delta must be one of -3, -2, -1, 1, 2, 3")
	}
	if playerID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "playerId is required")
	}
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	if _, err := s.mutableLobby(ctx, actor.LobbyID); err != nil {
		return nil, err
	}

	ev := s.event(actor, models.EventHeartAdjusted, ref(playerID), nil)
	res, err := s.applyHearts(ctx, actor, playerID, delta, ev)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.LobbyID)
	return res, nil
}

// applyHearts writes the adjustment and then the sudden death or knockout
// follow-up for a loss that left the player at zero. A knockout completes the
// season.
func (s *Service) applyHearts(ctx context.Context, actor models.Actor, playerID uuid.UUID, delta int, ev *models.HistoryEvent) (*models.HeartResult, error) {
	adj := models.HeartAdjustment{LobbyID: actor.LobbyID, PlayerID: playerID, Delta: delta, CreatedAt: s.now()}
	res, err := s.store.ApplyHeartAdjustment(ctx, adj, s.maxLives, ev)
	if err != nil {
		return nil, err
	}
	if delta > 0 || res.After > 0 {
		return &res, nil
	}

	// The follow-ups are separate conditional writes; the adjustment itself is already committed.
	lobby, err := s.store.GetLobby(ctx, actor.LobbyID)
	if err != nil {
		return &res, s.followUpFailed(actor, playerID, err)
	}
	player, err := s.store.GetPlayer(ctx, actor.LobbyID, playerID)
	if err != nil {
		return &res, s.followUpFailed(actor, playerID, err)
	}

	switch {
	case season.KnocksOut(lobby, *player, delta, res.After):
		applied, err := s.store.KnockOut(ctx, actor.LobbyID, playerID, s.event(actor, models.EventKnockout, ref(playerID),
			map[string]interface{}{"pot": lobby.CashPool}))
		if err != nil {
			return &res, s.followUpFailed(actor, playerID, err)
		}
		if !applied {
			break
		}
		res.KnockedOut = true
		if season.CanTransition(lobby.Mode, lobby.Status, models.StatusCompleted) {
			s.followStage(ctx, actor, lobby, models.StatusCompleted, "knockout")
		}
	case season.PendingSuddenDeath(lobby, *player):
		if _, err := s.store.EnterSuddenDeath(ctx, actor.LobbyID, playerID,
			s.event(actor, models.EventSuddenDeath, ref(playerID), nil)); err != nil {
			return &res, s.followUpFailed(actor, playerID, err)
		}
	}
	return &res, nil
}

func (s *Service) followUpFailed(actor models.Actor, playerID uuid.UUID, err error) error {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"lobby_id":  actor.LobbyID,
		"player_id": playerID,
	}).Error("heart adjustment follow-up failed")
	s.invalidate(context.Background(), actor.LobbyID)
	return err
}
