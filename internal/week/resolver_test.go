package week

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWeeks serves a fixed latest week and counts calls.
type stubWeeks struct {
	week     int
	statuses []models.WeekStatus
	err      error
	calls    int
}

func (s *stubWeeks) LatestPunishmentWeek(_ context.Context, _ uuid.UUID) (int, []models.WeekStatus, error) {
	s.calls++
	return s.week, s.statuses, s.err
}

var (
	seasonStart = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	fixedNow    = seasonStart.Add(20 * 24 * time.Hour) // day 20 => date week 3
)

func newTestResolver(store PunishmentWeeks) *Resolver {
	return &Resolver{Store: store, Now: func() time.Time { return fixedNow }}
}

func rouletteSpin() Params {
	start := seasonStart
	return Params{Mode: models.ModeRoulette, Status: models.StatusTransitionSpin, SeasonStart: &start}
}

func TestDateWeek(t *testing.T) {
	start := seasonStart
	assert.Equal(t, 1, DateWeek(&start, start))
	assert.Equal(t, 1, DateWeek(&start, start.Add(-72*time.Hour)), "negative elapsed floors at 1")
	assert.Equal(t, 2, DateWeek(&start, start.Add(7*24*time.Hour)))
	assert.Equal(t, 3, DateWeek(&start, fixedNow))
	assert.Equal(t, 1, DateWeek(nil, fixedNow))
}

func TestNonRouletteIgnoresRows(t *testing.T) {
	store := &stubWeeks{week: 9, statuses: []models.WeekStatus{models.WeekComplete}}
	r := newTestResolver(store)
	start := seasonStart

	for _, status := range []models.SeasonStatus{models.StatusActive, models.StatusTransitionSpin, models.StatusScheduled} {
		got, err := r.Resolve(context.Background(), uuid.New(), Params{Mode: models.ModeNormal, Status: status, SeasonStart: &start})
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	}
	assert.Zero(t, store.calls, "date-based resolution must not touch the store")
}

func TestRouletteOutsideTransitionUsesDate(t *testing.T) {
	store := &stubWeeks{week: 1}
	r := newTestResolver(store)
	p := rouletteSpin()
	p.Status = models.StatusActive

	got, err := r.Resolve(context.Background(), uuid.New(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Zero(t, store.calls)
}

func TestRouletteTransition(t *testing.T) {
	tests := []struct {
		name     string
		week     int
		statuses []models.WeekStatus
		want     int
	}{
		{name: "no rows starts at one", week: 0, want: 1},
		{name: "complete advances", week: 4, statuses: []models.WeekStatus{models.WeekPendingPunishment, models.WeekComplete}, want: 5},
		{name: "active advances", week: 2, statuses: []models.WeekStatus{models.WeekActive}, want: 3},
		{name: "pending stays", week: 4, statuses: []models.WeekStatus{models.WeekPendingPunishment}, want: 4},
		{name: "awaiting confirmation stays", week: 4, statuses: []models.WeekStatus{models.WeekPendingConfirmation, models.WeekPendingPunishment}, want: 4},
		{name: "unknown stays", week: 7, statuses: []models.WeekStatus{models.WeekUnknown}, want: 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestResolver(&stubWeeks{week: tc.week, statuses: tc.statuses})
			got, err := r.Resolve(context.Background(), uuid.New(), rouletteSpin())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newTestResolver(&stubWeeks{week: 3, statuses: []models.WeekStatus{models.WeekComplete}})
	lobbyID := uuid.New()

	first, err := r.Resolve(context.Background(), lobbyID, rouletteSpin())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), lobbyID, rouletteSpin())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	store := &stubWeeks{err: boom}
	r := newTestResolver(store)

	_, err := r.Resolve(context.Background(), uuid.New(), rouletteSpin())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.calls, "no retry inside the resolver")
}
