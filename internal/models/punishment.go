package models

import (
	"time"

	"github.com/google/uuid"
)

// WeekStatus is the punishment-cycle status of a LobbyPunishment row.
type WeekStatus string

const (
	WeekPendingPunishment   WeekStatus = "PENDING_PUNISHMENT"
	WeekPendingConfirmation WeekStatus = "PENDING_CONFIRMATION"
	WeekActive              WeekStatus = "ACTIVE"
	WeekComplete            WeekStatus = "COMPLETE"
	WeekUnknown             WeekStatus = "UNKNOWN"
)

// ParseWeekStatus maps persisted strings onto the closed set, falling back to WeekUnknown.
func ParseWeekStatus(s string) WeekStatus {
	switch ws := WeekStatus(s); ws {
	case WeekPendingPunishment, WeekPendingConfirmation, WeekActive, WeekComplete:
		return ws
	}
	return WeekUnknown
}

// Concluded reports whether a week with this status has already had its punishment.
func (ws WeekStatus) Concluded() bool {
	return ws == WeekActive || ws == WeekComplete
}

// LobbyPunishment is one candidate punishment submitted for a week.
type LobbyPunishment struct {
	ID         uuid.UUID  `json:"id"`
	LobbyID    uuid.UUID  `json:"-"`
	Week       int        `json:"week"`
	Text       string     `json:"text"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	Locked     bool       `json:"-"`
	WeekStatus WeekStatus `json:"week_status,omitempty"`
	CreatedAt  time.Time  `json:"-"`
}

// PunishmentSpinEvent records the roulette resolution of a week.
type PunishmentSpinEvent struct {
	SpinID       uuid.UUID `json:"spinId"`
	LobbyID      uuid.UUID `json:"-"`
	Week         int       `json:"week"`
	WinnerItemID uuid.UUID `json:"winnerItemId"`
	StartedAt    time.Time `json:"startedAt"`
}

// WeekContext summarises the state of the resolved punishment week.
type WeekContext struct {
	Week         int    `json:"week"`
	HasItems     bool   `json:"hasItems"`
	HasSpinEvent bool   `json:"hasSpinEvent"`
	HasActive    bool   `json:"hasActive"`
	Status       string `json:"status"`
}

// LobbyPunishmentsResponse is the punishment-cycle view returned to members.
type LobbyPunishmentsResponse struct {
	Week        int                  `json:"week"`
	Items       []LobbyPunishment    `json:"items"`
	Active      *LobbyPunishment     `json:"active"`
	Locked      bool                 `json:"locked"`
	WeekStatus  *string              `json:"weekStatus"`
	NeedsSpin   bool                 `json:"needsSpin,omitempty"`
	WeekContext *WeekContext         `json:"weekContext,omitempty"`
	SpinEvent   *PunishmentSpinEvent `json:"spinEvent"`
}
