package season

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/scoring"
)

// IsKnockedOut reports whether the player has been eliminated. Without sudden
// death, reaching zero lives is a knockout. With sudden death, a player at zero
// lives is still in play until the next loss marks them eliminated.
func IsKnockedOut(l *models.Lobby, p models.Player) bool {
	if p.Eliminated {
		return true
	}
	return !l.SuddenDeathEnabled && p.Lives <= 0
}

// PendingSuddenDeath reports a player at zero lives who has not been flagged yet.
func PendingSuddenDeath(l *models.Lobby, p models.Player) bool {
	return l.SuddenDeathEnabled && p.Lives <= 0 && !p.SuddenDeath && !p.Eliminated
}

// KnocksOut reports whether a loss that left the player at after lives
// eliminates them. A sudden death player survives the loss that flags them.
func KnocksOut(l *models.Lobby, p models.Player, delta, after int) bool {
	if delta >= 0 || after > 0 || p.Eliminated {
		return false
	}
	return !l.SuddenDeathEnabled || p.SuddenDeath
}

// SeasonOver reports whether no further play is possible: the season is
// completed or a player has been knocked out.
func SeasonOver(l *models.Lobby, players []models.Player) bool {
	if l.Status == models.StatusCompleted {
		return true
	}
	for _, p := range players {
		if IsKnockedOut(l, p) {
			return true
		}
	}
	return false
}

// SeasonEnded reports whether season_end has been reached at now.
func SeasonEnded(l *models.Lobby, now time.Time) bool {
	return l.SeasonEnd != nil && !now.Before(*l.SeasonEnd)
}

// DeriveStage computes the primary stage from status, season end, knockouts and
// sudden death flags.
func DeriveStage(l *models.Lobby, players []models.Player, now time.Time) models.Stage {
	if SeasonOver(l, players) {
		return models.StageCompleted
	}

	switch l.Status {
	case models.StatusPending, models.StatusScheduled:
		return models.StagePreSeason
	case models.StatusTransitionSpin:
		if SeasonEnded(l, now) {
			return models.StageCompleted
		}
		return models.StageSpin
	}

	if SeasonEnded(l, now) {
		return models.StageCompleted
	}
	for _, p := range players {
		if p.SuddenDeath || PendingSuddenDeath(l, p) {
			return models.StageSuddenDeath
		}
	}
	return models.StageActive
}

// DetectKO finds the knockout to report. Players are matched against the
// replayed knockout history in append order so the most recent knockout wins;
// potAtKO comes from that event, falling back to the current pot. The winner is
// set only when exactly one player is still in play.
func DetectKO(l *models.Lobby, players []models.Player, history []models.HistoryEvent) *models.KOEvent {
	out := make(map[uuid.UUID]bool)
	var alive []uuid.UUID
	for _, p := range players {
		if IsKnockedOut(l, p) {
			out[p.ID] = true
			continue
		}
		alive = append(alive, p.ID)
	}
	if len(out) == 0 {
		return nil
	}

	events := make([]models.HistoryEvent, len(history))
	copy(events, history)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

	var ko *models.KOEvent
	for _, ev := range events {
		if ev.Type != models.EventKnockout || ev.TargetID == nil || !out[*ev.TargetID] {
			continue
		}
		pot, ok := ev.PayloadInt("pot")
		if !ok {
			pot = l.CashPool
		}
		ko = &models.KOEvent{LoserPlayerID: *ev.TargetID, PotAtKO: pot}
	}
	if ko == nil {
		for _, p := range players {
			if out[p.ID] {
				ko = &models.KOEvent{LoserPlayerID: p.ID, PotAtKO: l.CashPool}
				break
			}
		}
	}

	if len(alive) == 1 {
		winner := alive[0]
		ko.WinnerPlayerID = &winner
	}
	return ko
}

// Summarize builds the end-of-season standings.
func Summarize(l *models.Lobby, players []models.Player, now time.Time) *models.SeasonSummary {
	ordered := make([]models.Player, len(players))
	copy(ordered, players)
	ranks := scoring.Rank(ordered)

	end := now
	if l.SeasonEnd != nil && l.SeasonEnd.Before(now) {
		end = *l.SeasonEnd
	}
	weeks := 0
	if l.SeasonStart != nil {
		weeks = scoring.WeeksBetween(*l.SeasonStart, end)
	}

	summary := &models.SeasonSummary{
		SeasonNumber: l.SeasonNumber,
		FinalPot:     l.CashPool,
		WeeksPlayed:  weeks,
		Standings:    make([]models.Standing, 0, len(ordered)),
		Survivors:    []uuid.UUID{},
		Winners:      []uuid.UUID{},
	}
	for _, p := range ordered {
		ko := IsKnockedOut(l, p)
		summary.Standings = append(summary.Standings, models.Standing{
			PlayerID:   p.ID,
			Name:       p.Name,
			Rank:       ranks[p.ID.String()],
			Points:     scoring.PlayerPoints(p),
			Workouts:   scoring.Deref(p.Workouts),
			Streak:     scoring.Deref(p.Streak),
			Lives:      p.Lives,
			KnockedOut: ko,
		})
		if !ko {
			summary.Survivors = append(summary.Survivors, p.ID)
		}
	}

	// Winners are the best-ranked survivors; with no survivors, the best-ranked players overall.
	pool := summary.Standings
	if len(summary.Survivors) > 0 {
		pool = pool[:0:0]
		for _, s := range summary.Standings {
			if !s.KnockedOut {
				pool = append(pool, s)
			}
		}
	}
	if len(pool) > 0 {
		best := pool[0].Rank
		for _, s := range pool {
			if s.Rank == best {
				summary.Winners = append(summary.Winners, s.PlayerID)
			}
		}
	}
	return summary
}
