package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanJoin(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	stranger := models.Actor{UserID: uuid.New()}

	cases := []struct {
		name   string
		invite models.InviteConfig
		actor  models.Actor
		token  string
		code   string
	}{
		{"disabled beats everything", models.InviteConfig{Enabled: false, ExpiresAt: &future, TokenRequired: true, Token: "t"}, stranger, "t", apperr.CodeInviteDisabled},
		{"expired", models.InviteConfig{Enabled: true, ExpiresAt: &past}, stranger, "", apperr.CodeInviteExpired},
		{"expires exactly now", models.InviteConfig{Enabled: true, ExpiresAt: &now}, stranger, "", apperr.CodeInviteExpired},
		{"wrong token", models.InviteConfig{Enabled: true, TokenRequired: true, Token: "secret"}, stranger, "Secret", apperr.CodeInviteTokenInvalid},
		{"empty configured token", models.InviteConfig{Enabled: true, TokenRequired: true}, stranger, "", apperr.CodeInviteTokenInvalid},
		{"right token", models.InviteConfig{Enabled: true, ExpiresAt: &future, TokenRequired: true, Token: "secret"}, stranger, "secret", ""},
		{"open invite", models.InviteConfig{Enabled: true}, stranger, "", ""},
		{"member with invites off", models.InviteConfig{}, models.Actor{UserID: uuid.New(), IsMember: true}, "", ""},
		{"owner with expired invite", models.InviteConfig{Enabled: true, ExpiresAt: &past}, models.Actor{UserID: uuid.New(), IsOwner: true}, "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CanJoin(&models.Lobby{Invite: c.invite}, c.actor, c.token, now)
			if c.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
			assert.Equal(t, c.code, apperr.CodeOf(err))
		})
	}
}

func TestJoin(t *testing.T) {
	e := newEnv(t, func(l *models.Lobby) {
		l.Invite = models.InviteConfig{Enabled: true, TokenRequired: true, Token: "letmein"}
		l.InitialLives = 2
	})
	ctx := context.Background()
	actor := e.strangerActor()

	_, err := e.svc.Join(ctx, actor, "cy", "nope")
	assert.Equal(t, apperr.CodeInviteTokenInvalid, apperr.CodeOf(err))

	p, err := e.svc.Join(ctx, actor, " cy ", "letmein")
	require.NoError(t, err)
	assert.Equal(t, "cy", p.Name)
	assert.Equal(t, 2, p.Lives)
	assert.Equal(t, actor.UserID, p.UserID)
	assert.Len(t, e.history(t, models.EventPlayerJoined), 1)

	_, err = e.svc.Join(ctx, actor, "cy", "letmein")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err), "the store rejects a second row for the user")

	member := models.Actor{UserID: actor.UserID, PlayerID: p.ID, LobbyID: e.lobby.ID, IsMember: true}
	again, err := e.svc.Join(ctx, member, "cy", "")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	_, err = e.svc.Join(ctx, models.Actor{LobbyID: e.lobby.ID}, "x", "letmein")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestTransferOwnership(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	assert.Equal(t, apperr.Forbidden, apperr.KindOf(e.svc.TransferOwnership(ctx, e.memberActor(), e.owner.ID)))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(e.svc.TransferOwnership(ctx, e.ownerActor(), e.owner.ID)))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(e.svc.TransferOwnership(ctx, e.ownerActor(), uuid.New())))

	require.NoError(t, e.svc.TransferOwnership(ctx, e.ownerActor(), e.other.ID))
	assert.Equal(t, e.other.ID, e.lobbyRow(t).OwnerID)
	assert.Len(t, e.history(t, models.EventOwnershipTransfer), 1)
}

func TestSetReady(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.svc.SetReady(context.Background(), e.memberActor(), true))
	assert.True(t, e.player(t, e.other.ID).Ready)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(e.svc.SetReady(context.Background(), e.strangerActor(), true)))
}

func TestCreateLobby(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	user := uuid.New()

	l, owner, err := e.svc.CreateLobby(ctx, user, CreateLobbyInput{Name: "new crew", OwnerName: "dee", Mode: models.ModeRoulette})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, l.Status)
	assert.Equal(t, 3, l.InitialLives)
	assert.Equal(t, 3, l.WeeklyTarget)
	assert.Equal(t, owner.ID, l.OwnerID)

	stored, err := e.store.FindPlayerByUser(ctx, l.ID, user)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, stored.ID)
	assert.Equal(t, 3, stored.Lives)

	start := e.now
	end := start.Add(-time.Hour)
	_, _, err = e.svc.CreateLobby(ctx, user, CreateLobbyInput{Name: "bad", SeasonStart: &start, SeasonEnd: &end})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	_, _, err = e.svc.CreateLobby(ctx, user, CreateLobbyInput{Name: "bad", Mode: "battle"})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	_, _, err = e.svc.CreateLobby(ctx, uuid.Nil, CreateLobbyInput{Name: "anon"})
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, _, err = e.svc.CreateLobby(ctx, user, CreateLobbyInput{Name: "bad", InitialLives: 4})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "or 0 for the default")
}
