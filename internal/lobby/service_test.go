package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/memstore"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (r *recorder) Invalidate(_ context.Context, lobbyID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, lobbyID)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func intp(v int) *int { return &v }

type env struct {
	store *memstore.Store
	svc   *Service
	inv   *recorder
	now   time.Time
	lobby models.Lobby
	owner models.Player
	other models.Player
}

// newEnv seeds an active normal lobby with an owner and one other player.
// The season started two days before now.
func newEnv(t *testing.T, mutate func(l *models.Lobby)) *env {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	start := now.Add(-48 * time.Hour)
	end := now.Add(60 * 24 * time.Hour)

	e := &env{store: memstore.New(), inv: &recorder{}, now: now}
	e.store.SetClock(func() time.Time { return now })
	e.lobby = models.Lobby{
		ID: uuid.New(), Name: "crew", SeasonNumber: 1,
		SeasonStart: &start, SeasonEnd: &end,
		CashPool: 50, WeeklyTarget: 3, InitialLives: 3,
		Mode: models.ModeNormal, Status: models.StatusActive,
		WeeklyAnte: 10,
	}
	e.owner = models.Player{ID: uuid.New(), LobbyID: e.lobby.ID, UserID: uuid.New(), Name: "ana", Lives: 3, JoinedAt: start}
	e.other = models.Player{ID: uuid.New(), LobbyID: e.lobby.ID, UserID: uuid.New(), Name: "bo", Lives: 2, JoinedAt: start.Add(time.Minute)}
	e.lobby.OwnerID = e.owner.ID
	if mutate != nil {
		mutate(&e.lobby)
	}
	e.store.PutLobby(e.lobby)
	e.store.PutPlayer(e.owner)
	e.store.PutPlayer(e.other)

	e.svc = NewService(e.store, e.inv, logrus.New(), Options{
		MaxLives: 3,
		Now:      func() time.Time { return now },
		Pick:     func(n int) int { return n - 1 },
	})
	return e
}

func (e *env) ownerActor() models.Actor {
	return models.Actor{UserID: e.owner.UserID, PlayerID: e.owner.ID, LobbyID: e.lobby.ID, IsMember: true, IsOwner: true}
}

func (e *env) memberActor() models.Actor {
	return models.Actor{UserID: e.other.UserID, PlayerID: e.other.ID, LobbyID: e.lobby.ID, IsMember: true}
}

func (e *env) strangerActor() models.Actor {
	return models.Actor{UserID: uuid.New(), LobbyID: e.lobby.ID}
}

func (e *env) player(t *testing.T, id uuid.UUID) *models.Player {
	t.Helper()
	p, err := e.store.GetPlayer(context.Background(), e.lobby.ID, id)
	require.NoError(t, err)
	return p
}

func (e *env) history(t *testing.T, types ...models.HistoryEventType) []models.HistoryEvent {
	t.Helper()
	events, err := e.store.ListHistoryByType(context.Background(), e.lobby.ID, types...)
	require.NoError(t, err)
	return events
}

func (e *env) lobbyRow(t *testing.T) *models.Lobby {
	t.Helper()
	l, err := e.store.GetLobby(context.Background(), e.lobby.ID)
	require.NoError(t, err)
	return l
}

func TestListHistoryCapsLimit(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.svc.historyLimit = 2
	for i := 0; i < 3; i++ {
		require.NoError(t, e.svc.SetReady(ctx, e.memberActor(), i%2 == 0))
	}

	events, err := e.svc.ListHistory(ctx, e.memberActor(), 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].Seq, events[1].Seq)

	_, err = e.svc.ListHistory(ctx, e.strangerActor(), 10)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = e.svc.ListHistory(ctx, models.Actor{LobbyID: e.lobby.ID}, 10)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}
