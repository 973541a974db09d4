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

const playerColumns = `
	id, lobby_id, user_id, name, lives, sudden_death, eliminated, ready,
	workouts, streak, penalties, week_workouts, joined_at`

func scanPlayer(row scanner) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.LobbyID, &p.UserID, &p.Name, &p.Lives, &p.SuddenDeath, &p.Eliminated, &p.Ready,
		&p.Workouts, &p.Streak, &p.Penalties, &p.WeekWorkouts, &p.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlayers returns the lobby's players in join order.
func (s *Store) ListPlayers(ctx context.Context, lobbyID uuid.UUID) ([]models.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `SELECT ` + playerColumns + ` FROM players WHERE lobby_id = $1 ORDER BY joined_at, id`
	rows, err := s.pool.Query(ctx, q, lobbyID)
	if err != nil {
		return nil, translate(err, "players")
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, translate(err, "player")
		}
		players = append(players, *p)
	}
	return players, translate(rows.Err(), "players")
}

// GetPlayer fetches a player of the lobby.
func (s *Store) GetPlayer(ctx context.Context, lobbyID, playerID uuid.UUID) (*models.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `SELECT ` + playerColumns + ` FROM players WHERE id = $1 AND lobby_id = $2`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, playerID, lobbyID))
	if err != nil {
		return nil, translate(err, "player")
	}
	return p, nil
}

// FindPlayerByUser returns the user's player in the lobby.
func (s *Store) FindPlayerByUser(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `SELECT ` + playerColumns + ` FROM players WHERE lobby_id = $1 AND user_id = $2`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, lobbyID, userID))
	if err != nil {
		return nil, translate(err, "player")
	}
	return p, nil
}

// InsertPlayer adds a player. The (lobby, user) unique key turns double joins into Conflict.
func (s *Store) InsertPlayer(ctx context.Context, p *models.Player, ev *models.HistoryEvent) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		if err := insertPlayerTx(ctx, tx, p); err != nil {
			return err
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "player")
}

func insertPlayerTx(ctx context.Context, tx pgx.Tx, p *models.Player) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO players (id, lobby_id, user_id, name, lives, sudden_death, ready, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.LobbyID, p.UserID, p.Name, p.Lives, p.SuddenDeath, p.Ready, p.JoinedAt)
	return err
}

// ApplyHeartAdjustment moves the player's lives by adj.Delta clamped to [0, maxLives]
// in one conditional update, then records the adjustment and ev in the same transaction.
func (s *Store) ApplyHeartAdjustment(ctx context.Context, adj models.HeartAdjustment, maxLives int, ev *models.HistoryEvent) (models.HeartResult, error) {
	res := models.HeartResult{PlayerID: adj.PlayerID}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			WITH target AS (
				SELECT p.id, p.lives
				FROM players p
				JOIN lobbies l ON l.id = p.lobby_id
				WHERE p.id = $1 AND p.lobby_id = $2 AND l.status <> 'completed'
				FOR UPDATE OF p
			)
			UPDATE players
			SET lives = LEAST(GREATEST(players.lives + $3, 0), $4)
			FROM target
			WHERE players.id = target.id
			RETURNING target.lives, players.lives
		`, adj.PlayerID, adj.LobbyID, adj.Delta, maxLives).Scan(&res.Before, &res.After)
		if errors.Is(err, pgx.ErrNoRows) {
			return heartMissCause(ctx, tx, adj)
		}
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO heart_adjustments (lobby_id, player_id, delta, applied)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, adj.LobbyID, adj.PlayerID, adj.Delta, res.Applied()).Scan(&adj.ID); err != nil {
			return err
		}

		if ev != nil {
			if ev.Payload == nil {
				ev.Payload = map[string]interface{}{}
			}
			ev.Payload["delta"] = adj.Delta
			ev.Payload["applied"] = res.Applied()
			ev.Payload["before"] = res.Before
			ev.Payload["after"] = res.After
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	if err != nil {
		return models.HeartResult{}, translate(err, "player")
	}
	return res, nil
}

// heartMissCause explains why the conditional heart update matched no row.
func heartMissCause(ctx context.Context, tx pgx.Tx, adj models.HeartAdjustment) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM lobbies WHERE id = $1`, adj.LobbyID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, "lobby not found")
	}
	if err != nil {
		return err
	}
	if status == string(models.StatusCompleted) {
		return apperr.WithCode(apperr.Conflict, apperr.CodeSeasonCompleted, "season is already completed")
	}
	return apperr.New(apperr.NotFound, "player not found")
}

// EnterSuddenDeath flags a zero-lives player. Lives stay at zero. It reports
// false when the player is not eligible.
func (s *Store) EnterSuddenDeath(ctx context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error) {
	applied := false
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE players SET sudden_death = true
			WHERE id = $1 AND lobby_id = $2 AND lives = 0 AND sudden_death = false AND eliminated = false
		`, playerID, lobbyID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		return appendHistoryTx(ctx, tx, ev)
	})
	return applied, translate(err, "player")
}

// KnockOut marks a zero-lives player as eliminated and appends ev in the same
// transaction. It reports false when the player still has lives or is already out.
func (s *Store) KnockOut(ctx context.Context, lobbyID, playerID uuid.UUID, ev *models.HistoryEvent) (bool, error) {
	applied := false
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE players SET eliminated = true
			WHERE id = $1 AND lobby_id = $2 AND lives = 0 AND eliminated = false
		`, playerID, lobbyID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		return appendHistoryTx(ctx, tx, ev)
	})
	return applied, translate(err, "player")
}

// SetReady stores the player's ready flag.
func (s *Store) SetReady(ctx context.Context, lobbyID, playerID uuid.UUID, ready bool, ev *models.HistoryEvent) error {
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE players SET ready = $3 WHERE id = $1 AND lobby_id = $2`,
			playerID, lobbyID, ready,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.NotFound, "player not found")
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "player")
}
