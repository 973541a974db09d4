// Package snapshot builds Live Snapshots from store rows and keeps the
// snapshot cache coherent with mutations.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/scoring"
	"github.com/jason-s-yu/heartline/internal/season"
	"github.com/jason-s-yu/heartline/internal/week"
)

// Per-player error reasons.
const (
	ReasonLivesOutOfRange = "lives_out_of_range"
	ReasonMissingCounters = "missing_counters"
)

// MaxTimezoneOffset bounds the accepted offset in minutes either side of UTC.
const MaxTimezoneOffset = 14 * 60

// Source is the read side of the Event/History Store the reconciler consumes.
type Source interface {
	week.PunishmentWeeks
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	ListPlayers(ctx context.Context, lobbyID uuid.UUID) ([]models.Player, error)
	ListHistory(ctx context.Context, lobbyID uuid.UUID, limit int) ([]models.HistoryEvent, error)
	ListHistoryByType(ctx context.Context, lobbyID uuid.UUID, types ...models.HistoryEventType) ([]models.HistoryEvent, error)
}

// Reconciler computes snapshots. It only reads from the store.
type Reconciler struct {
	Store       Source
	Weeks       *week.Resolver
	MaxLives    int
	RecentLimit int
	Now         func() time.Time
}

// NewReconciler returns a reconciler over store using the wall clock.
func NewReconciler(store Source, maxLives, recentLimit int) *Reconciler {
	return &Reconciler{
		Store:       store,
		Weeks:       week.NewResolver(store),
		MaxLives:    maxLives,
		RecentLimit: recentLimit,
		Now:         time.Now,
	}
}

// ValidateOffset rejects timezone offsets outside [-840, 840] minutes.
func ValidateOffset(tz int) error {
	if tz < -MaxTimezoneOffset || tz > MaxTimezoneOffset {
		return apperr.Newf(apperr.InvalidInput, "timezone offset %d out of range", tz)
	}
	return nil
}

// LocalDay returns midnight of the local calendar day containing t, where
// local time is UTC minus tz minutes. The result is expressed in UTC.
func LocalDay(t time.Time, tz int) time.Time {
	local := t.UTC().Add(-time.Duration(tz) * time.Minute)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Compute builds the snapshot for lobbyID as seen from timezone offset tz.
// Store errors are returned unchanged; a missing lobby is NotFound.
func (r *Reconciler) Compute(ctx context.Context, lobbyID uuid.UUID, tz int) (*models.LiveSnapshot, error) {
	now := r.now()

	lobby, err := r.Store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	players, err := r.Store.ListPlayers(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	var errs []models.PlayerError
	for i := range players {
		p := &players[i]
		if p.Lives < 0 || (r.MaxLives > 0 && p.Lives > r.MaxLives) {
			errs = append(errs, models.PlayerError{PlayerID: p.ID, Reason: ReasonLivesOutOfRange})
			p.Lives = max(p.Lives, 0)
			if r.MaxLives > 0 {
				p.Lives = min(p.Lives, r.MaxLives)
			}
		}
		if !p.HasCounters() {
			errs = append(errs, models.PlayerError{PlayerID: p.ID, Reason: ReasonMissingCounters})
		}
	}

	// Week boundaries follow the caller's local day; season end stays absolute.
	localNow := LocalDay(now, tz)
	params := week.ParamsOf(lobby)
	weeksElapsed := 0
	if lobby.SeasonStart != nil {
		start := LocalDay(*lobby.SeasonStart, tz)
		params.SeasonStart = &start
		weeksElapsed = scoring.WeeksBetween(start, localNow)
	}
	currentWeek, err := r.Weeks.ResolveAt(ctx, lobbyID, params, localNow)
	if err != nil {
		return nil, err
	}

	stage := season.DeriveStage(lobby, players, now)

	var ko *models.KOEvent
	for _, p := range players {
		if season.IsKnockedOut(lobby, p) {
			koHistory, err := r.Store.ListHistoryByType(ctx, lobbyID, models.EventKnockout)
			if err != nil {
				return nil, err
			}
			ko = season.DetectKO(lobby, players, koHistory)
			break
		}
	}

	var summary *models.SeasonSummary
	if stage == models.StageCompleted {
		summary = season.Summarize(lobby, players, now)
	}

	recent, err := r.Store.ListHistory(ctx, lobbyID, r.RecentLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []models.HistoryEvent{}
	}

	ranked := make([]models.Player, len(players))
	copy(ranked, players)
	ranks := scoring.Rank(ranked)
	views := make([]models.PlayerView, 0, len(ranked))
	for _, p := range ranked {
		views = append(views, models.PlayerView{
			Player:     p,
			Points:     scoring.PlayerPoints(p),
			Rank:       ranks[p.ID.String()],
			KnockedOut: season.IsKnockedOut(lobby, p),
		})
	}

	return &models.LiveSnapshot{
		Lobby: models.LobbyView{
			Lobby:        *lobby,
			Players:      views,
			PlayerCount:  len(players),
			Pot:          lobby.CashPool,
			WeeklyAnte:   scoring.LobbyWeeklyAnte(lobby, len(players)),
			CurrentWeek:  currentWeek,
			WeeksElapsed: weeksElapsed,
			RecentEvents: recent,
		},
		FetchedAt:     now,
		Errors:        errs,
		SeasonStatus:  lobby.Status,
		Stage:         stage,
		SeasonSummary: summary,
		KOEvent:       ko,
	}, nil
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
