package models

import "github.com/google/uuid"

// Actor is the resolved caller of a lobby operation.
type Actor struct {
	UserID   uuid.UUID
	PlayerID uuid.UUID
	LobbyID  uuid.UUID
	IsMember bool
	IsOwner  bool
	// System is set for cron-originated operations; history records a nil actor.
	System bool
}

// SystemActor returns the actor used by scheduled jobs.
func SystemActor(lobbyID uuid.UUID) Actor {
	return Actor{LobbyID: lobbyID, IsMember: true, IsOwner: true, System: true}
}

// HistoryActor returns the actor reference to record in history events.
func (a Actor) HistoryActor() *uuid.UUID {
	if a.System || a.PlayerID == uuid.Nil {
		return nil
	}
	id := a.PlayerID
	return &id
}
