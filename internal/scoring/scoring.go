// Package scoring holds the pure scoreboard formulas. Every function is total:
// no I/O, no errors, and absent inputs count as zero.
package scoring

import (
	"sort"
	"time"

	"github.com/jason-s-yu/heartline/internal/models"
)

// Week is the length of one competition cycle.
const Week = 7 * 24 * time.Hour

// Points is workouts + streak - penalties.
func Points(workouts, streak, penalties int) int {
	return workouts + streak - penalties
}

// PlayerPoints applies Points to a player's ingested counters, treating nil counters as zero.
func PlayerPoints(p models.Player) int {
	return Points(Deref(p.Workouts), Deref(p.Streak), Deref(p.Penalties))
}

// EffectiveWeeklyAnte is the ante added to the pot each week. With scaling enabled,
// every player beyond the first adds perPlayerBoost. The result never goes below zero.
func EffectiveWeeklyAnte(baseAnte, playerCount int, scalingEnabled bool, perPlayerBoost int) int {
	ante := baseAnte
	if scalingEnabled {
		ante += perPlayerBoost * max(playerCount-1, 0)
	}
	return max(0, ante)
}

// LobbyWeeklyAnte applies EffectiveWeeklyAnte to a lobby's configuration.
func LobbyWeeklyAnte(l *models.Lobby, playerCount int) int {
	return EffectiveWeeklyAnte(l.WeeklyAnte, playerCount, l.AnteScalingEnabled, l.AntePerPlayerBoost)
}

// WeeksSince returns the number of whole weeks between startISO (RFC 3339) and now.
// A missing or unparsable start yields 0.
func WeeksSince(startISO string, now time.Time) int {
	if startISO == "" {
		return 0
	}
	start, err := time.Parse(time.RFC3339, startISO)
	if err != nil {
		return 0
	}
	return WeeksBetween(start, now)
}

// WeeksBetween is WeeksSince for an already parsed start.
func WeeksBetween(start, now time.Time) int {
	if start.IsZero() {
		return 0
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / Week)
}

// Less orders two players for the leaderboard: points desc, then workouts desc, then streak desc.
func Less(a, b models.Player) bool {
	pa, pb := PlayerPoints(a), PlayerPoints(b)
	if pa != pb {
		return pa > pb
	}
	wa, wb := Deref(a.Workouts), Deref(b.Workouts)
	if wa != wb {
		return wa > wb
	}
	return Deref(a.Streak) > Deref(b.Streak)
}

// Rank sorts players in leaderboard order, stable for full ties, and returns
// the 1-based rank of each player ID. Fully tied players share a rank.
func Rank(players []models.Player) map[string]int {
	sort.SliceStable(players, func(i, j int) bool {
		return Less(players[i], players[j])
	})
	ranks := make(map[string]int, len(players))
	for i, p := range players {
		if i > 0 && !Less(players[i-1], p) {
			ranks[p.ID.String()] = ranks[players[i-1].ID.String()]
			continue
		}
		ranks[p.ID.String()] = i + 1
	}
	return ranks
}

// Deref reads an optional counter, treating nil as zero.
func Deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
