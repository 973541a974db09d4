package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a participant in exactly one lobby.
//
// Workouts, Streak, Penalties and WeekWorkouts are written by activity ingestion
// and are nil until the first sync. They are read-only here.
//
// A sudden death player stays at zero lives; Eliminated is set by the loss that
// knocks them out.
type Player struct {
	ID          uuid.UUID `json:"id"`
	LobbyID     uuid.UUID `json:"lobbyId"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Lives       int       `json:"lives"`
	SuddenDeath bool      `json:"suddenDeath"`
	Eliminated  bool      `json:"eliminated"`
	Ready       bool      `json:"ready"`

	Workouts     *int `json:"workouts,omitempty"`
	Streak       *int `json:"streak,omitempty"`
	Penalties    *int `json:"penalties,omitempty"`
	WeekWorkouts *int `json:"weekWorkouts,omitempty"`

	JoinedAt time.Time `json:"joinedAt"`
}

// HasCounters reports whether ingestion has written any counters for the player.
func (p *Player) HasCounters() bool {
	return p.Workouts != nil || p.Streak != nil || p.Penalties != nil
}
