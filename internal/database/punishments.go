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

const punishmentColumns = `id, lobby_id, week, text, created_by, locked, week_status, created_at`

func scanPunishment(row scanner) (*models.LobbyPunishment, error) {
	var p models.LobbyPunishment
	var status string
	if err := row.Scan(&p.ID, &p.LobbyID, &p.Week, &p.Text, &p.CreatedBy, &p.Locked, &status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.WeekStatus = models.ParseWeekStatus(status)
	return &p, nil
}

// LatestPunishmentWeek returns the highest week with rows and that week's statuses.
func (s *Store) LatestPunishmentWeek(ctx context.Context, lobbyID uuid.UUID) (int, []models.WeekStatus, error) {
	if err := s.ready(); err != nil {
		return 0, nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT week, week_status FROM lobby_punishments
		WHERE lobby_id = $1
		  AND week = (SELECT MAX(week) FROM lobby_punishments WHERE lobby_id = $1)
	`, lobbyID)
	if err != nil {
		return 0, nil, translate(err, "punishments")
	}
	defer rows.Close()

	latest := 0
	var statuses []models.WeekStatus
	for rows.Next() {
		var status string
		if err := rows.Scan(&latest, &status); err != nil {
			return 0, nil, translate(err, "punishment")
		}
		statuses = append(statuses, models.ParseWeekStatus(status))
	}
	return latest, statuses, translate(rows.Err(), "punishments")
}

// ListPunishments returns the week's rows in submission order.
func (s *Store) ListPunishments(ctx context.Context, lobbyID uuid.UUID, week int) ([]models.LobbyPunishment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `SELECT ` + punishmentColumns + ` FROM lobby_punishments WHERE lobby_id = $1 AND week = $2 ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, q, lobbyID, week)
	if err != nil {
		return nil, translate(err, "punishments")
	}
	defer rows.Close()

	var items []models.LobbyPunishment
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, translate(err, "punishment")
		}
		items = append(items, *p)
	}
	return items, translate(rows.Err(), "punishments")
}

// GetSpinEvent returns the week's spin, or nil when the week has not been spun.
func (s *Store) GetSpinEvent(ctx context.Context, lobbyID uuid.UUID, week int) (*models.PunishmentSpinEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var spin models.PunishmentSpinEvent
	err := s.pool.QueryRow(ctx, `
		SELECT spin_id, lobby_id, week, winner_item_id, started_at
		FROM punishment_spin_events WHERE lobby_id = $1 AND week = $2
	`, lobbyID, week).Scan(&spin.SpinID, &spin.LobbyID, &spin.Week, &spin.WinnerItemID, &spin.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "spin event")
	}
	return &spin, nil
}

// InsertPunishment adds a candidate submission.
func (s *Store) InsertPunishment(ctx context.Context, p *models.LobbyPunishment, ev *models.HistoryEvent) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.WeekStatus == "" {
		p.WeekStatus = models.WeekPendingPunishment
	}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO lobby_punishments (`+punishmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, p.LobbyID, p.Week, p.Text, p.CreatedBy, p.Locked, string(p.WeekStatus), p.CreatedAt)
		if err != nil {
			return err
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "punishment")
}

// RecordSpin stores the week's spin and marks the winning row as awaiting confirmation.
// The (lobby, week) unique key makes a second spin fail with Conflict.
func (s *Store) RecordSpin(ctx context.Context, spin *models.PunishmentSpinEvent, ev *models.HistoryEvent) error {
	if spin.SpinID == uuid.Nil {
		spin.SpinID = uuid.New()
	}
	if spin.StartedAt.IsZero() {
		spin.StartedAt = time.Now().UTC()
	}
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO punishment_spin_events (spin_id, lobby_id, week, winner_item_id, started_at)
			SELECT $1, $2, $3, id, $5 FROM lobby_punishments
			WHERE id = $4 AND lobby_id = $2 AND week = $3
			ON CONFLICT (lobby_id, week) DO NOTHING
		`, spin.SpinID, spin.LobbyID, spin.Week, spin.WinnerItemID, spin.StartedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var spun bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM punishment_spin_events WHERE lobby_id = $1 AND week = $2)`,
				spin.LobbyID, spin.Week,
			).Scan(&spun); err != nil {
				return err
			}
			if spun {
				return raceLost("week has already been spun")
			}
			return apperr.New(apperr.NotFound, "punishment not found")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE lobby_punishments SET week_status = $2
			WHERE id = $1 AND week_status = $3
		`, spin.WinnerItemID, string(models.WeekPendingConfirmation), string(models.WeekPendingPunishment)); err != nil {
			return err
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "spin event")
}

// LockPunishment makes the item the week's active punishment. It fails with
// Conflict if the week already has a concluded item.
func (s *Store) LockPunishment(ctx context.Context, lobbyID, itemID uuid.UUID, ev *models.HistoryEvent) (*models.LobbyPunishment, error) {
	var locked *models.LobbyPunishment
	err := s.tx(ctx, func(tx pgx.Tx) error {
		q := `
		UPDATE lobby_punishments p SET locked = true, week_status = 'ACTIVE'
		WHERE p.id = $1 AND p.lobby_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM lobby_punishments o
			WHERE o.lobby_id = p.lobby_id AND o.week = p.week
			  AND o.week_status IN ('ACTIVE', 'COMPLETE')
		  )
		RETURNING ` + punishmentColumns
		p, err := scanPunishment(tx.QueryRow(ctx, q, itemID, lobbyID))
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM lobby_punishments WHERE id = $1 AND lobby_id = $2)`,
				itemID, lobbyID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return apperr.New(apperr.NotFound, "punishment not found")
			}
			return raceLost("week already has a locked punishment")
		}
		if err != nil {
			return err
		}
		locked = p
		return appendHistoryTx(ctx, tx, ev)
	})
	if err != nil {
		return nil, translate(err, "punishment")
	}
	return locked, nil
}

// UnlockPunishment reverts the week's active item to awaiting confirmation.
func (s *Store) UnlockPunishment(ctx context.Context, lobbyID uuid.UUID, week int, ev *models.HistoryEvent) (*models.LobbyPunishment, error) {
	var unlocked *models.LobbyPunishment
	err := s.tx(ctx, func(tx pgx.Tx) error {
		q := `
		UPDATE lobby_punishments SET locked = false, week_status = 'PENDING_CONFIRMATION'
		WHERE lobby_id = $1 AND week = $2 AND week_status = 'ACTIVE'
		RETURNING ` + punishmentColumns
		p, err := scanPunishment(tx.QueryRow(ctx, q, lobbyID, week))
		if errors.Is(err, pgx.ErrNoRows) {
			return raceLost("week has no locked punishment")
		}
		if err != nil {
			return err
		}
		unlocked = p
		return appendHistoryTx(ctx, tx, ev)
	})
	if err != nil {
		return nil, translate(err, "punishment")
	}
	return unlocked, nil
}

// ResolveActivePunishments completes every active row of the lobby and returns how many changed.
func (s *Store) ResolveActivePunishments(ctx context.Context, lobbyID uuid.UUID, ev *models.HistoryEvent) (int, error) {
	n := 0
	err := s.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE lobby_punishments SET week_status = 'COMPLETE'
			WHERE lobby_id = $1 AND week_status = 'ACTIVE'
		`, lobbyID)
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		if n == 0 {
			return nil
		}
		if ev != nil {
			if ev.Payload == nil {
				ev.Payload = map[string]interface{}{}
			}
			ev.Payload["resolved"] = n
		}
		return appendHistoryTx(ctx, tx, ev)
	})
	return n, translate(err, "punishments")
}
