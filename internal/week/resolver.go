// Package week resolves which punishment-cycle week a lobby is in.
//
// Outside a roulette transition the week is pure date arithmetic. During
// transition_spin the persisted punishment rows decide, so a delayed transition
// never skips or repeats a cycle.
package week

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/scoring"
)

// PunishmentWeeks is the read-only slice of the store the resolver needs.
type PunishmentWeeks interface {
	// LatestPunishmentWeek returns the highest week index with punishment rows for
	// the lobby and the week_status of every row in that week. A zero week means no rows.
	LatestPunishmentWeek(ctx context.Context, lobbyID uuid.UUID) (int, []models.WeekStatus, error)
}

// Params carries the lobby fields resolution depends on.
type Params struct {
	Mode        models.LobbyMode
	Status      models.SeasonStatus
	SeasonStart *time.Time
}

// ParamsOf extracts Params from a lobby row.
func ParamsOf(l *models.Lobby) Params {
	return Params{Mode: l.Mode, Status: l.Status, SeasonStart: l.SeasonStart}
}

// Resolver resolves punishment weeks against a store.
type Resolver struct {
	Store PunishmentWeeks
	Now   func() time.Time
}

// NewResolver returns a resolver using the wall clock.
func NewResolver(store PunishmentWeeks) *Resolver {
	return &Resolver{Store: store, Now: time.Now}
}

// Resolve returns the canonical week index for the lobby at the current time.
func (r *Resolver) Resolve(ctx context.Context, lobbyID uuid.UUID, p Params) (int, error) {
	return r.ResolveAt(ctx, lobbyID, p, r.now())
}

// ResolveAt is Resolve evaluated at a given instant. Store errors are returned unchanged.
func (r *Resolver) ResolveAt(ctx context.Context, lobbyID uuid.UUID, p Params, at time.Time) (int, error) {
	if p.Mode != models.ModeRoulette || p.Status != models.StatusTransitionSpin {
		return DateWeek(p.SeasonStart, at), nil
	}

	latest, statuses, err := r.Store.LatestPunishmentWeek(ctx, lobbyID)
	if err != nil {
		return 0, err
	}
	if latest <= 0 {
		return 1, nil
	}
	for _, st := range statuses {
		if st.Concluded() {
			return latest + 1, nil
		}
	}
	return latest, nil
}

// DateWeek is floor((at - start) / 7d) + 1, never below 1. A nil start is week 1.
func DateWeek(start *time.Time, at time.Time) int {
	if start == nil {
		return 1
	}
	return scoring.WeeksBetween(*start, at) + 1
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
