package lobby

import (
	"context"

	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/scoring"
	"github.com/jason-s-yu/heartline/internal/season"
	"github.com/sirupsen/logrus"
)

// The scheduled jobs below run as the system actor. Each one is safe to run
// concurrently with itself: the store guards make repeated runs no-ops.

// CompleteExpiredSeasons completes every running season whose end has passed
// or that has a knocked-out player left in a running status.
func (s *Service) CompleteExpiredSeasons(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbiesByStatus(ctx, models.StatusActive, models.StatusTransitionSpin)
	if err != nil {
		return 0, err
	}
	now := s.now()
	done := 0
	for i := range lobbies {
		l := &lobbies[i]
		reason := "season_end"
		if !season.SeasonEnded(l, now) {
			over, err := s.seasonOver(ctx, l)
			if err != nil {
				s.jobFailed("complete_expired_seasons", l, err)
				continue
			}
			if !over {
				continue
			}
			reason = "knockout"
		}
		err := s.moveStage(ctx, models.SystemActor(l.ID), l, models.StatusCompleted, reason)
		if err != nil {
			s.jobFailed("complete_expired_seasons", l, err)
			continue
		}
		s.invalidate(ctx, l.ID)
		done++
	}
	return done, nil
}

// AccrueWeeklyAnte adds the effective weekly ante to the pot for every whole
// week elapsed since season start that has not been accrued yet.
func (s *Service) AccrueWeeklyAnte(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbiesByStatus(ctx, models.StatusActive, models.StatusTransitionSpin)
	if err != nil {
		return 0, err
	}
	now := s.now()
	accrued := 0
	for i := range lobbies {
		l := &lobbies[i]
		if l.SeasonStart == nil {
			continue
		}
		end := now
		if l.SeasonEnd != nil && l.SeasonEnd.Before(end) {
			end = *l.SeasonEnd
		}
		wk := scoring.WeeksBetween(*l.SeasonStart, end)
		if wk <= l.LastAnteWeek {
			continue
		}
		players, err := s.store.ListPlayers(ctx, l.ID)
		if err != nil {
			s.jobFailed("accrue_weekly_ante", l, err)
			continue
		}
		if season.SeasonOver(l, players) {
			continue
		}
		perWeek := scoring.LobbyWeeklyAnte(l, len(players))
		if perWeek == 0 {
			continue
		}
		ev := s.event(models.SystemActor(l.ID), models.EventAnteAccrued, nil, map[string]interface{}{"week": wk})
		applied, err := s.store.AccrueAnte(ctx, l.ID, wk, perWeek, ev)
		if err != nil {
			s.jobFailed("accrue_weekly_ante", l, err)
			continue
		}
		if applied {
			s.invalidate(ctx, l.ID)
			accrued++
		}
	}
	return accrued, nil
}

// EvaluateWeeklyTargets takes one heart from every surviving player who missed
// the weekly target, once per elapsed week. Roulette lobbies then enter
// transition_spin for the next punishment.
func (s *Service) EvaluateWeeklyTargets(ctx context.Context) (int, error) {
	lobbies, err := s.store.ListLobbiesByStatus(ctx, models.StatusActive)
	if err != nil {
		return 0, err
	}
	now := s.now()
	evaluated := 0
	for i := range lobbies {
		l := &lobbies[i]
		if l.SeasonStart == nil || season.SeasonEnded(l, now) {
			continue
		}
		wk := scoring.WeeksBetween(*l.SeasonStart, now)
		if wk < 1 || wk <= l.LastEvaluatedWeek {
			continue
		}
		over, err := s.seasonOver(ctx, l)
		if err != nil {
			s.jobFailed("evaluate_weekly_targets", l, err)
			continue
		}
		if over {
			continue
		}
		claimed, err := s.store.ClaimWeekEvaluation(ctx, l.ID, wk)
		if err != nil {
			s.jobFailed("evaluate_weekly_targets", l, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.evaluateLobby(ctx, l, wk); err != nil {
			s.jobFailed("evaluate_weekly_targets", l, err)
		}
		s.invalidate(ctx, l.ID)
		evaluated++
	}
	return evaluated, nil
}

func (s *Service) evaluateLobby(ctx context.Context, l *models.Lobby, wk int) error {
	actor := models.SystemActor(l.ID)
	players, err := s.store.ListPlayers(ctx, l.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if season.IsKnockedOut(l, p) {
			continue
		}
		workouts := scoring.Deref(p.WeekWorkouts)
		if workouts >= l.WeeklyTarget {
			continue
		}
		ev := s.event(actor, models.EventWeeklyTargetMissed, ref(p.ID), map[string]interface{}{
			"week":     wk,
			"workouts": workouts,
			"target":   l.WeeklyTarget,
		})
		res, err := s.applyHearts(ctx, actor, p.ID, -1, ev)
		if err != nil {
			if apperr.Is(err, apperr.Conflict) {
				return err
			}
			s.jobFailed("evaluate_weekly_targets", l, err)
			continue
		}
		if res.KnockedOut {
			return nil
		}
	}
	if l.IsRoulette() {
		return s.moveStage(ctx, actor, l, models.StatusTransitionSpin, "week_end")
	}
	return nil
}

func (s *Service) jobFailed(job string, l *models.Lobby, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"job":      job,
		"lobby_id": l.ID,
		"code":     apperr.CodeOf(err),
	}).Warn("scheduled job skipped lobby")
}
