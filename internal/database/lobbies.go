package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

const lobbyColumns = `
	id, name, season_number, season_start, season_end,
	cash_pool, weekly_target, initial_lives,
	mode, status, owner_id, sudden_death_enabled,
	weekly_ante, ante_scaling_enabled, ante_per_player_boost,
	invite_enabled, invite_expires_at, invite_token_required, invite_token,
	last_ante_week, last_evaluated_week, created_at`

func scanLobby(row scanner) (*models.Lobby, error) {
	var l models.Lobby
	var mode, status string
	err := row.Scan(
		&l.ID, &l.Name, &l.SeasonNumber, &l.SeasonStart, &l.SeasonEnd,
		&l.CashPool, &l.WeeklyTarget, &l.InitialLives,
		&mode, &status, &l.OwnerID, &l.SuddenDeathEnabled,
		&l.WeeklyAnte, &l.AnteScalingEnabled, &l.AntePerPlayerBoost,
		&l.Invite.Enabled, &l.Invite.ExpiresAt, &l.Invite.TokenRequired, &l.Invite.Token,
		&l.LastAnteWeek, &l.LastEvaluatedWeek, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Mode = models.LobbyMode(mode)
	if st, ok := models.ParseSeasonStatus(status); ok {
		l.Status = st
	} else {
		return nil, apperr.Newf(apperr.Internal, "lobby %s has unknown status %q", l.ID, status)
	}
	return &l, nil
}

// InsertLobby creates a new lobby row.
func (s *Store) InsertLobby(ctx context.Context, l *models.Lobby) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		return insertLobbyTx(ctx, tx, l)
	})
	return translate(err, "lobby")
}

func insertLobbyTx(ctx context.Context, tx pgx.Tx, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (` + lobbyColumns + `)
	VALUES ($1, $2, $3, $4, $5,
	        $6, $7, $8,
	        $9, $10, $11, $12,
	        $13, $14, $15,
	        $16, $17, $18, $19,
	        $20, $21, $22)
	`
	_, err := tx.Exec(ctx, q,
		l.ID, l.Name, l.SeasonNumber, l.SeasonStart, l.SeasonEnd,
		l.CashPool, l.WeeklyTarget, l.InitialLives,
		string(l.Mode), string(l.Status), l.OwnerID, l.SuddenDeathEnabled,
		l.WeeklyAnte, l.AnteScalingEnabled, l.AntePerPlayerBoost,
		l.Invite.Enabled, l.Invite.ExpiresAt, l.Invite.TokenRequired, l.Invite.Token,
		l.LastAnteWeek, l.LastEvaluatedWeek, l.CreatedAt,
	)
	return err
}

// CreateLobby inserts a lobby and its owner's player in one transaction.
func (s *Store) CreateLobby(ctx context.Context, l *models.Lobby, owner *models.Player, ev *models.HistoryEvent) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if owner.JoinedAt.IsZero() {
		owner.JoinedAt = now
	}
	owner.LobbyID = l.ID
	l.OwnerID = owner.ID
	if ev != nil {
		ev.LobbyID = l.ID
	}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		if err := insertLobbyTx(ctx, tx, l); err != nil {
			return err
		}
		if err := insertPlayerTx(ctx, tx, owner); err != nil {
			return err
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "lobby")
}

// GetLobby fetches a lobby by ID.
func (s *Store) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE id = $1`
	l, err := scanLobby(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, translate(err, "lobby")
	}
	return l, nil
}

// ListLobbiesByStatus returns every lobby in one of the given statuses, oldest first.
func (s *Store) ListLobbiesByStatus(ctx context.Context, statuses ...models.SeasonStatus) ([]models.Lobby, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE status = ANY($1) ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, names)
	if err != nil {
		return nil, translate(err, "lobbies")
	}
	defer rows.Close()

	var lobbies []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, translate(err, "lobby")
		}
		lobbies = append(lobbies, *l)
	}
	return lobbies, translate(rows.Err(), "lobbies")
}

// TransitionStatus moves the lobby from one status to another only if it is still in from.
func (s *Store) TransitionStatus(ctx context.Context, lobbyID uuid.UUID, from, to models.SeasonStatus, ev *models.HistoryEvent) error {
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE lobbies SET status = $3 WHERE id = $1 AND status = $2`,
			lobbyID, string(from), string(to),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if err := lobbyExistsTx(ctx, tx, lobbyID); err != nil {
				return err
			}
			return raceLost("lobby status changed concurrently")
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "lobby")
}

// TransferOwnership hands the lobby to another member if from is still the owner.
func (s *Store) TransferOwnership(ctx context.Context, lobbyID, from, to uuid.UUID, ev *models.HistoryEvent) error {
	err := s.tx(ctx, func(tx pgx.Tx) error {
		var member bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1 AND lobby_id = $2)`, to, lobbyID,
		).Scan(&member); err != nil {
			return err
		}
		if !member {
			return apperr.New(apperr.NotFound, "player not found")
		}
		tag, err := tx.Exec(ctx,
			`UPDATE lobbies SET owner_id = $3 WHERE id = $1 AND owner_id = $2`,
			lobbyID, from, to,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if err := lobbyExistsTx(ctx, tx, lobbyID); err != nil {
				return err
			}
			return raceLost("lobby owner changed concurrently")
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "lobby")
}

// AccrueAnte adds perWeek to the pot for every week after the last accrued one
// up to week, and records week. It reports false when week was already accrued.
func (s *Store) AccrueAnte(ctx context.Context, lobbyID uuid.UUID, week, perWeek int, ev *models.HistoryEvent) (bool, error) {
	applied := false
	err := s.tx(ctx, func(tx pgx.Tx) error {
		var weeks, pot int
		err := tx.QueryRow(ctx, `
			WITH prev AS (
				SELECT id, last_ante_week FROM lobbies WHERE id = $1 FOR UPDATE
			)
			UPDATE lobbies
			SET cash_pool = lobbies.cash_pool + $3 * ($2 - prev.last_ante_week),
			    last_ante_week = $2
			FROM prev
			WHERE lobbies.id = prev.id AND prev.last_ante_week < $2
			RETURNING $2 - prev.last_ante_week, lobbies.cash_pool
		`, lobbyID, week, perWeek).Scan(&weeks, &pot)
		if errors.Is(err, pgx.ErrNoRows) {
			return lobbyExistsTx(ctx, tx, lobbyID)
		}
		if err != nil {
			return err
		}
		applied = true
		if ev != nil {
			if ev.Payload == nil {
				ev.Payload = map[string]interface{}{}
			}
			ev.Payload["weeks"] = weeks
			ev.Payload["amount"] = perWeek * weeks
			ev.Payload["pot"] = pot
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return applied, translate(err, "lobby")
}

// ClaimWeekEvaluation marks week as evaluated. Only the first caller per week wins.
func (s *Store) ClaimWeekEvaluation(ctx context.Context, lobbyID uuid.UUID, week int) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE lobbies SET last_evaluated_week = $2 WHERE id = $1 AND last_evaluated_week < $2`,
		lobbyID, week,
	)
	if err != nil {
		return false, translate(err, "lobby")
	}
	return tag.RowsAffected() == 1, nil
}

func lobbyExistsTx(ctx context.Context, tx pgx.Tx, lobbyID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id = $1)`, lobbyID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	return nil
}
