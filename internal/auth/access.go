package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

// Members is the slice of the store needed to resolve lobby roles.
type Members interface {
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	FindPlayerByUser(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Player, error)
}

// Resolver maps an authenticated user onto their role in a lobby.
type Resolver struct {
	store Members
}

func NewResolver(store Members) *Resolver {
	return &Resolver{store: store}
}

// ResolveActor returns the caller's actor for lobbyID. A user without a player
// row resolves to a non-member; a missing lobby is NotFound.
func (r *Resolver) ResolveActor(ctx context.Context, userID, lobbyID uuid.UUID) (models.Actor, error) {
	actor := models.Actor{UserID: userID, LobbyID: lobbyID}
	if userID == uuid.Nil {
		return actor, apperr.New(apperr.Unauthorized, "authentication required")
	}
	l, err := r.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return actor, err
	}
	p, err := r.store.FindPlayerByUser(ctx, lobbyID, userID)
	switch {
	case apperr.Is(err, apperr.NotFound):
		return actor, nil
	case err != nil:
		return actor, err
	}
	actor.PlayerID = p.ID
	actor.IsMember = true
	actor.IsOwner = l.OwnerID == p.ID
	return actor, nil
}
