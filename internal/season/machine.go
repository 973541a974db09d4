// Package season owns the season lifecycle: the closed status set, the legal
// transitions between statuses, stage derivation, knockout detection and the
// end-of-season summary.
package season

import (
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

// transitions lists every legal status change. rouletteOnly marks edges that
// only exist in challenge roulette mode.
var transitions = map[models.SeasonStatus]map[models.SeasonStatus]bool{
	models.StatusPending: {
		models.StatusScheduled: false,
		models.StatusActive:    false,
	},
	models.StatusScheduled: {
		models.StatusActive:         false,
		models.StatusTransitionSpin: true,
	},
	models.StatusActive: {
		models.StatusTransitionSpin: true,
		models.StatusCompleted:      false,
	},
	models.StatusTransitionSpin: {
		models.StatusActive:    true,
		models.StatusCompleted: true,
	},
}

// CanTransition reports whether from -> to is legal for the mode.
func CanTransition(mode models.LobbyMode, from, to models.SeasonStatus) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	rouletteOnly, ok := edges[to]
	if !ok {
		return false
	}
	return !rouletteOnly || mode == models.ModeRoulette
}

// ValidateTransition returns a Conflict error for any transition outside the table.
func ValidateTransition(mode models.LobbyMode, from, to models.SeasonStatus) error {
	if _, ok := models.ParseSeasonStatus(string(to)); !ok {
		return apperr.Newf(apperr.InvalidInput, "unknown season status %q", to)
	}
	if from == models.StatusCompleted {
		return apperr.WithCode(apperr.Conflict, apperr.CodeSeasonCompleted, "season is already completed")
	}
	if !CanTransition(mode, from, to) {
		return apperr.WithCode(apperr.Conflict, apperr.CodeStageTransition,
			"cannot move season from "+string(from)+" to "+string(to))
	}
	return nil
}

// Next returns the statuses reachable from the given status in the mode.
func Next(mode models.LobbyMode, from models.SeasonStatus) []models.SeasonStatus {
	var out []models.SeasonStatus
	for _, to := range []models.SeasonStatus{
		models.StatusScheduled, models.StatusTransitionSpin, models.StatusActive, models.StatusCompleted,
	} {
		if CanTransition(mode, from, to) {
			out = append(out, to)
		}
	}
	return out
}
