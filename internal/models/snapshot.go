package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is the primary, derived stage of a lobby shown to readers.
type Stage string

const (
	StagePreSeason   Stage = "pre_season"
	StageSpin        Stage = "spin"
	StageActive      Stage = "active"
	StageSuddenDeath Stage = "sudden_death"
	StageCompleted   Stage = "completed"
)

// PlayerView is a player projection with derived metrics.
type PlayerView struct {
	Player
	Points     int  `json:"points"`
	Rank       int  `json:"rank"`
	KnockedOut bool `json:"knockedOut"`
}

// LobbyView is the full lobby + players projection carried by a snapshot.
type LobbyView struct {
	Lobby
	Players      []PlayerView   `json:"players"`
	PlayerCount  int            `json:"playerCount"`
	Pot          int            `json:"pot"`
	WeeklyAnte   int            `json:"effectiveWeeklyAnte"`
	CurrentWeek  int            `json:"currentWeek"`
	WeeksElapsed int            `json:"weeksElapsed"`
	RecentEvents []HistoryEvent `json:"recentEvents"`
}

// PlayerError reports a per-player inconsistency found during reconciliation.
type PlayerError struct {
	PlayerID uuid.UUID `json:"playerId"`
	Reason   string    `json:"reason"`
}

// KOEvent describes a knockout.
type KOEvent struct {
	LoserPlayerID  uuid.UUID  `json:"loserPlayerId"`
	PotAtKO        int        `json:"potAtKO"`
	WinnerPlayerID *uuid.UUID `json:"winnerPlayerId,omitempty"`
}

// Standing is one row of a season summary.
type Standing struct {
	PlayerID   uuid.UUID `json:"playerId"`
	Name       string    `json:"name"`
	Rank       int       `json:"rank"`
	Points     int       `json:"points"`
	Workouts   int       `json:"workouts"`
	Streak     int       `json:"streak"`
	Lives      int       `json:"lives"`
	KnockedOut bool      `json:"knockedOut"`
}

// SeasonSummary aggregates final standings once a season completes.
type SeasonSummary struct {
	SeasonNumber int         `json:"seasonNumber"`
	FinalPot     int         `json:"finalPot"`
	WeeksPlayed  int         `json:"weeksPlayed"`
	Standings    []Standing  `json:"standings"`
	Survivors    []uuid.UUID `json:"survivors"`
	Winners      []uuid.UUID `json:"winners"`
}

// LiveSnapshot is the cached, derived view of a lobby. It is never authoritative.
//
// Version is the cache generation the snapshot was computed under.
type LiveSnapshot struct {
	Lobby         LobbyView      `json:"lobby"`
	FetchedAt     time.Time      `json:"fetchedAt"`
	Errors        []PlayerError  `json:"errors,omitempty"`
	SeasonStatus  SeasonStatus   `json:"seasonStatus,omitempty"`
	Stage         Stage          `json:"stage,omitempty"`
	SeasonSummary *SeasonSummary `json:"seasonSummary"`
	KOEvent       *KOEvent       `json:"koEvent,omitempty"`
	Version       int64          `json:"version"`
}
