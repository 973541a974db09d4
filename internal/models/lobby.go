// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SeasonStatus is the persisted lifecycle status of a lobby's season.
type SeasonStatus string

const (
	StatusPending        SeasonStatus = "pending"
	StatusScheduled      SeasonStatus = "scheduled"
	StatusTransitionSpin SeasonStatus = "transition_spin"
	StatusActive         SeasonStatus = "active"
	StatusCompleted      SeasonStatus = "completed"
)

// ParseSeasonStatus returns the status for s, or false if s is not a known status.
func ParseSeasonStatus(s string) (SeasonStatus, bool) {
	switch st := SeasonStatus(s); st {
	case StatusPending, StatusScheduled, StatusTransitionSpin, StatusActive, StatusCompleted:
		return st, true
	}
	return "", false
}

// LobbyMode selects how weekly punishments are chosen.
type LobbyMode string

const (
	ModeNormal LobbyMode = "normal"
	// ModeRoulette picks the weekly punishment with a spin between weeks.
	ModeRoulette LobbyMode = "challenge_roulette"
)

// InviteConfig gates non-members joining a lobby.
type InviteConfig struct {
	Enabled       bool       `json:"enabled"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	TokenRequired bool       `json:"tokenRequired"`
	Token         string     `json:"-"`
}

// Lobby represents a row in the lobbies table.
type Lobby struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	SeasonNumber int          `json:"seasonNumber"`
	SeasonStart  *time.Time   `json:"seasonStart,omitempty"`
	SeasonEnd    *time.Time   `json:"seasonEnd,omitempty"`
	CashPool     int          `json:"cashPool"`
	WeeklyTarget int          `json:"weeklyTarget"`
	InitialLives int          `json:"initialLives"`
	Mode         LobbyMode    `json:"mode"`
	Status       SeasonStatus `json:"status"`
	OwnerID      uuid.UUID    `json:"ownerId"`

	SuddenDeathEnabled bool `json:"suddenDeathEnabled"`

	// ante configuration; see scoring.EffectiveWeeklyAnte
	WeeklyAnte         int  `json:"weeklyAnte"`
	AnteScalingEnabled bool `json:"anteScalingEnabled"`
	AntePerPlayerBoost int  `json:"antePerPlayerBoost"`

	Invite InviteConfig `json:"invite"`

	// LastAnteWeek and LastEvaluatedWeek guard the weekly cron jobs against double application.
	LastAnteWeek      int `json:"-"`
	LastEvaluatedWeek int `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsRoulette reports whether the lobby runs in challenge roulette mode.
func (l *Lobby) IsRoulette() bool {
	return l.Mode == ModeRoulette
}
