package auth

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/memstore"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)
	user := uuid.New()

	token, err := s.CreateJWT(user)
	require.NoError(t, err)
	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestJWTExpiry(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)
	issued := time.Now()
	s.now = func() time.Time { return issued }
	token, err := s.CreateJWT(uuid.New())
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.AuthenticateJWT(token)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestJWTRejectsForeignKeysAndMethods(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)
	other, err := NewSessions(0)
	require.NoError(t, err)

	token, err := other.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = s.AuthenticateJWT(token)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = s.AuthenticateJWT(hs)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = s.AuthenticateJWT("")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestNewSessionsFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "jwt"), filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	s, err := NewSessionsFromPath(privPath, pubPath, 0)
	require.NoError(t, err)
	user := uuid.New()
	token, err := s.CreateJWT(user)
	require.NoError(t, err)
	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = NewSessionsFromPath(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o600))
	_, err = NewSessionsFromPath(privPath, pubPath, 0)
	assert.Error(t, err)
}

func TestResolveActor(t *testing.T) {
	store := memstore.New()
	lobby := models.Lobby{ID: uuid.New(), Name: "crew", Status: models.StatusActive}
	owner := models.Player{ID: uuid.New(), LobbyID: lobby.ID, UserID: uuid.New(), Lives: 3}
	member := models.Player{ID: uuid.New(), LobbyID: lobby.ID, UserID: uuid.New(), Lives: 3}
	lobby.OwnerID = owner.ID
	store.PutLobby(lobby)
	store.PutPlayer(owner)
	store.PutPlayer(member)
	r := NewResolver(store)
	ctx := context.Background()

	a, err := r.ResolveActor(ctx, owner.UserID, lobby.ID)
	require.NoError(t, err)
	assert.True(t, a.IsOwner)
	assert.True(t, a.IsMember)
	assert.Equal(t, owner.ID, a.PlayerID)

	a, err = r.ResolveActor(ctx, member.UserID, lobby.ID)
	require.NoError(t, err)
	assert.False(t, a.IsOwner)
	assert.True(t, a.IsMember)

	stranger := uuid.New()
	a, err = r.ResolveActor(ctx, stranger, lobby.ID)
	require.NoError(t, err)
	assert.False(t, a.IsMember)
	assert.Equal(t, stranger, a.UserID)

	_, err = r.ResolveActor(ctx, stranger, uuid.New())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	_, err = r.ResolveActor(ctx, uuid.Nil, lobby.ID)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}
