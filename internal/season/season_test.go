package season

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newLobby(status models.SeasonStatus) *models.Lobby {
	start := now.Add(-15 * 24 * time.Hour)
	end := now.Add(30 * 24 * time.Hour)
	return &models.Lobby{
		ID:          uuid.New(),
		Status:      status,
		Mode:        models.ModeNormal,
		SeasonStart: &start,
		SeasonEnd:   &end,
		CashPool:    120,
	}
}

func player(lives int) models.Player {
	return models.Player{ID: uuid.New(), Lives: lives}
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.ModeNormal, models.StatusPending, models.StatusScheduled))
	assert.True(t, CanTransition(models.ModeNormal, models.StatusScheduled, models.StatusActive))
	assert.True(t, CanTransition(models.ModeNormal, models.StatusActive, models.StatusCompleted))
	assert.False(t, CanTransition(models.ModeNormal, models.StatusActive, models.StatusTransitionSpin), "spin is roulette only")
	assert.True(t, CanTransition(models.ModeRoulette, models.StatusActive, models.StatusTransitionSpin))
	assert.True(t, CanTransition(models.ModeRoulette, models.StatusTransitionSpin, models.StatusActive))
	assert.False(t, CanTransition(models.ModeRoulette, models.StatusActive, models.StatusPending), "no backwards moves")
	assert.False(t, CanTransition(models.ModeNormal, models.StatusActive, models.StatusActive))

	assert.Equal(t, []models.SeasonStatus{models.StatusTransitionSpin, models.StatusCompleted},
		Next(models.ModeRoulette, models.StatusActive))
	assert.Empty(t, Next(models.ModeRoulette, models.StatusCompleted))
}

func TestValidateTransitionErrors(t *testing.T) {
	err := ValidateTransition(models.ModeNormal, models.StatusCompleted, models.StatusActive)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeSeasonCompleted, apperr.CodeOf(err))

	err = ValidateTransition(models.ModeNormal, models.StatusActive, models.StatusScheduled)
	assert.Equal(t, apperr.CodeStageTransition, apperr.CodeOf(err))

	err = ValidateTransition(models.ModeNormal, models.StatusActive, "paused")
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	assert.NoError(t, ValidateTransition(models.ModeNormal, models.StatusActive, models.StatusCompleted))
}

func TestDeriveStage(t *testing.T) {
	alive := []models.Player{player(2), player(3)}

	assert.Equal(t, models.StagePreSeason, DeriveStage(newLobby(models.StatusPending), alive, now))
	assert.Equal(t, models.StagePreSeason, DeriveStage(newLobby(models.StatusScheduled), alive, now))
	assert.Equal(t, models.StageSpin, DeriveStage(newLobby(models.StatusTransitionSpin), alive, now))
	assert.Equal(t, models.StageActive, DeriveStage(newLobby(models.StatusActive), alive, now))
	assert.Equal(t, models.StageCompleted, DeriveStage(newLobby(models.StatusCompleted), alive, now))

	ended := newLobby(models.StatusActive)
	past := now.Add(-time.Hour)
	ended.SeasonEnd = &past
	assert.Equal(t, models.StageCompleted, DeriveStage(ended, alive, now))

	ko := newLobby(models.StatusActive)
	assert.Equal(t, models.StageCompleted, DeriveStage(ko, []models.Player{player(0), player(2)}, now))
}

func TestSuddenDeathStage(t *testing.T) {
	l := newLobby(models.StatusActive)
	l.SuddenDeathEnabled = true

	pending := player(0)
	assert.False(t, IsKnockedOut(l, pending))
	assert.True(t, PendingSuddenDeath(l, pending))
	assert.Equal(t, models.StageSuddenDeath, DeriveStage(l, []models.Player{pending, player(2)}, now))

	flagged := player(1)
	flagged.SuddenDeath = true
	assert.Equal(t, models.StageSuddenDeath, DeriveStage(l, []models.Player{flagged, player(2)}, now))

	flagged.Lives = 0
	assert.False(t, IsKnockedOut(l, flagged), "flagged at zero is still in play")
	assert.False(t, PendingSuddenDeath(l, flagged))
	assert.Equal(t, models.StageSuddenDeath, DeriveStage(l, []models.Player{flagged, player(2)}, now))

	flagged.Eliminated = true
	assert.True(t, IsKnockedOut(l, flagged))
	assert.True(t, SeasonOver(l, []models.Player{flagged, player(2)}))
	assert.Equal(t, models.StageCompleted, DeriveStage(l, []models.Player{flagged, player(2)}, now))
}

func TestKnocksOut(t *testing.T) {
	normal := newLobby(models.StatusActive)
	sudden := newLobby(models.StatusActive)
	sudden.SuddenDeathEnabled = true
	flagged := player(0)
	flagged.SuddenDeath = true
	out := player(0)
	out.Eliminated = true

	cases := []struct {
		name  string
		l     *models.Lobby
		p     models.Player
		delta int
		after int
		want  bool
	}{
		{"normal loss to zero", normal, player(0), -1, 0, true},
		{"normal loss with lives left", normal, player(1), -1, 1, false},
		{"gain", normal, player(0), 1, 0, false},
		{"first sudden death loss", sudden, player(0), -2, 0, false},
		{"loss while flagged", sudden, flagged, -1, 0, true},
		{"already out", normal, out, -1, 0, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KnocksOut(c.l, c.p, c.delta, c.after), c.name)
	}
}

func TestDetectKOCountsSuddenDeathPlayersInPlay(t *testing.T) {
	l := newLobby(models.StatusCompleted)
	l.SuddenDeathEnabled = true
	loser := player(0)
	loser.SuddenDeath, loser.Eliminated = true, true
	flagged := player(0)
	flagged.SuddenDeath = true

	ko := DetectKO(l, []models.Player{loser, flagged, player(2)}, nil)
	require.NotNil(t, ko)
	assert.Equal(t, loser.ID, ko.LoserPlayerID)
	assert.Nil(t, ko.WinnerPlayerID)
}

func TestDetectKOWinner(t *testing.T) {
	l := newLobby(models.StatusActive)
	loser := player(0)
	survivor := player(2)

	ko := DetectKO(l, []models.Player{loser, survivor}, nil)
	require.NotNil(t, ko)
	assert.Equal(t, loser.ID, ko.LoserPlayerID)
	assert.Equal(t, 120, ko.PotAtKO)
	require.NotNil(t, ko.WinnerPlayerID)
	assert.Equal(t, survivor.ID, *ko.WinnerPlayerID)
}

func TestDetectKONoWinnerWithTwoSurvivors(t *testing.T) {
	l := newLobby(models.StatusActive)
	ko := DetectKO(l, []models.Player{player(0), player(2), player(1)}, nil)
	require.NotNil(t, ko)
	assert.Nil(t, ko.WinnerPlayerID)
}

func TestDetectKOReplaysHistory(t *testing.T) {
	l := newLobby(models.StatusActive)
	first, second, survivor := player(0), player(0), player(3)
	history := []models.HistoryEvent{
		{Seq: 9, Type: models.EventKnockout, TargetID: &second.ID, Payload: map[string]interface{}{"pot": float64(90)}},
		{Seq: 4, Type: models.EventKnockout, TargetID: &first.ID, Payload: map[string]interface{}{"pot": 60}},
		{Seq: 5, Type: models.EventHeartAdjusted, TargetID: &survivor.ID},
	}

	ko := DetectKO(l, []models.Player{first, second, survivor}, history)
	require.NotNil(t, ko)
	assert.Equal(t, second.ID, ko.LoserPlayerID, "latest knockout in append order")
	assert.Equal(t, 90, ko.PotAtKO)
	require.NotNil(t, ko.WinnerPlayerID)
	assert.Equal(t, survivor.ID, *ko.WinnerPlayerID)
}

func TestDetectKONone(t *testing.T) {
	assert.Nil(t, DetectKO(newLobby(models.StatusActive), []models.Player{player(1), player(2)}, nil))
}

func TestSummarize(t *testing.T) {
	l := newLobby(models.StatusCompleted)
	w := func(v int) *int { return &v }
	a := models.Player{ID: uuid.New(), Name: "a", Lives: 1, Workouts: w(10)}
	b := models.Player{ID: uuid.New(), Name: "b", Lives: 0, Workouts: w(30)}
	c := models.Player{ID: uuid.New(), Name: "c", Lives: 2, Workouts: w(4)}

	s := Summarize(l, []models.Player{a, b, c}, now)
	require.Len(t, s.Standings, 3)
	assert.Equal(t, b.ID, s.Standings[0].PlayerID)
	assert.True(t, s.Standings[0].KnockedOut)
	assert.Equal(t, 2, s.WeeksPlayed)
	assert.Equal(t, 120, s.FinalPot)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, s.Survivors)
	assert.Equal(t, []uuid.UUID{a.ID}, s.Winners, "best-ranked survivor wins")
}
