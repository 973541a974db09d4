package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestPoints(t *testing.T) {
	assert.Equal(t, 11, Points(10, 3, 2))
	assert.Equal(t, 0, Points(0, 0, 0))
	assert.Equal(t, 0, PlayerPoints(models.Player{}))
	assert.Equal(t, 4, PlayerPoints(models.Player{Workouts: intp(5), Penalties: intp(1)}))
}

func TestEffectiveWeeklyAnte(t *testing.T) {
	tests := []struct {
		name    string
		base    int
		players int
		scaling bool
		boost   int
		want    int
	}{
		{name: "scaled", base: 10, players: 3, scaling: true, boost: 5, want: 20},
		{name: "scaling disabled ignores boost", base: 10, players: 8, scaling: false, boost: 5, want: 10},
		{name: "single player no boost", base: 10, players: 1, scaling: true, boost: 5, want: 10},
		{name: "zero players", base: 10, players: 0, scaling: true, boost: 5, want: 10},
		{name: "negative floored", base: -4, players: 1, scaling: false, boost: 0, want: 0},
		{name: "negative boost floored", base: 5, players: 4, scaling: true, boost: -10, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveWeeklyAnte(tc.base, tc.players, tc.scaling, tc.boost))
		})
	}
}

func TestWeeksSince(t *testing.T) {
	now := time.Date(2026, 3, 22, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, WeeksSince("", now))
	assert.Equal(t, 0, WeeksSince("not a date", now))
	assert.Equal(t, 0, WeeksSince("2026-04-01T00:00:00Z", now), "future start")
	assert.Equal(t, 0, WeeksSince("2026-03-16T12:00:00Z", now))
	assert.Equal(t, 1, WeeksSince("2026-03-15T12:00:00Z", now))
	assert.Equal(t, 3, WeeksSince("2026-03-01T00:00:00Z", now))
}

func TestRankTieBreaks(t *testing.T) {
	a := models.Player{ID: uuid.New(), Workouts: intp(5), Streak: intp(2)}
	b := models.Player{ID: uuid.New(), Workouts: intp(6), Streak: intp(1)}
	c := models.Player{ID: uuid.New(), Workouts: intp(5), Streak: intp(3), Penalties: intp(1)}
	d := models.Player{ID: uuid.New(), Workouts: intp(9)}
	e := models.Player{ID: uuid.New(), Workouts: intp(5), Streak: intp(2)}

	players := []models.Player{a, b, c, d, e}
	ranks := Rank(players)

	require.Len(t, players, 5)
	assert.Equal(t, d.ID, players[0].ID)
	assert.Equal(t, b.ID, players[1].ID)
	assert.Equal(t, c.ID, players[2].ID)
	assert.Equal(t, a.ID, players[3].ID)
	assert.Equal(t, e.ID, players[4].ID)

	assert.Equal(t, 1, ranks[d.ID.String()])
	assert.Equal(t, 4, ranks[a.ID.String()])
	assert.Equal(t, 4, ranks[e.ID.String()], "full ties share a rank")
}
