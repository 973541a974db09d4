package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEventType tags an audit record.
type HistoryEventType string

const (
	EventHeartAdjusted       HistoryEventType = "heart_adjusted"
	EventSuddenDeath         HistoryEventType = "sudden_death"
	EventKnockout            HistoryEventType = "knockout"
	EventPunishmentSubmitted HistoryEventType = "punishment_submitted"
	EventPunishmentSpun      HistoryEventType = "punishment_spun"
	EventPunishmentLocked    HistoryEventType = "punishment_locked"
	EventPunishmentUnlocked  HistoryEventType = "punishment_unlocked"
	EventPunishmentsResolved HistoryEventType = "punishments_resolved"
	EventOwnershipTransfer   HistoryEventType = "ownership_transferred"
	EventStageChanged        HistoryEventType = "stage_changed"
	EventPlayerJoined        HistoryEventType = "player_joined"
	EventPlayerReady         HistoryEventType = "player_ready"
	EventAnteAccrued         HistoryEventType = "ante_accrued"
	EventWeeklyTargetMissed  HistoryEventType = "weekly_target_missed"
)

// HistoryEvent is an immutable audit record. Seq is assigned by the store on append
// and defines the replay order.
type HistoryEvent struct {
	Seq       int64                  `json:"seq"`
	LobbyID   uuid.UUID              `json:"lobbyId"`
	ActorID   *uuid.UUID             `json:"actorId,omitempty"`
	TargetID  *uuid.UUID             `json:"targetId,omitempty"`
	Type      HistoryEventType       `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// HeartAdjustment records a single change to a player's lives.
type HeartAdjustment struct {
	ID        int64     `json:"id"`
	LobbyID   uuid.UUID `json:"lobbyId"`
	PlayerID  uuid.UUID `json:"playerId"`
	Delta     int       `json:"delta"`
	// Applied is the change after clamping to [0, max lives].
	Applied   int       `json:"applied"`
	CreatedAt time.Time `json:"createdAt"`
}

// HeartResult is the outcome of an applied heart adjustment.
type HeartResult struct {
	PlayerID   uuid.UUID `json:"playerId"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
	// KnockedOut is set when this adjustment eliminated the player.
	KnockedOut bool      `json:"knockedOut,omitempty"`
}

// Applied is the change in lives after clamping.
func (r HeartResult) Applied() int {
	return r.After - r.Before
}

// PayloadInt reads an integer payload field. JSON round trips turn numbers into float64.
func (e *HistoryEvent) PayloadInt(key string) (int, bool) {
	switch v := e.Payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
