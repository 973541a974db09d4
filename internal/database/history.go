package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/heartline/internal/models"
)

const historyColumns = `seq, lobby_id, actor_id, target_id, type, payload, created_at`

// appendHistoryTx writes ev in the caller's transaction and fills in Seq and CreatedAt.
// A nil event is a no-op.
func appendHistoryTx(ctx context.Context, tx pgx.Tx, ev *models.HistoryEvent) error {
	if ev == nil {
		return nil
	}
	if ev.Payload == nil {
		ev.Payload = map[string]interface{}{}
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO history_events (lobby_id, actor_id, target_id, type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`, ev.LobbyID, ev.ActorID, ev.TargetID, string(ev.Type), payload).Scan(&ev.Seq, &ev.CreatedAt)
}

func scanHistory(row scanner) (models.HistoryEvent, error) {
	var ev models.HistoryEvent
	var typ string
	err := row.Scan(&ev.Seq, &ev.LobbyID, &ev.ActorID, &ev.TargetID, &typ, &ev.Payload, &ev.CreatedAt)
	ev.Type = models.HistoryEventType(typ)
	return ev, err
}

// AppendHistory appends a standalone audit event.
func (s *Store) AppendHistory(ctx context.Context, ev *models.HistoryEvent) error {
	err := s.tx(ctx, func(tx pgx.Tx) error {
		return appendHistoryTx(ctx, tx, ev)
	})
	return translate(err, "history event")
}

// ListHistory returns the latest limit events of the lobby in append order.
func (s *Store) ListHistory(ctx context.Context, lobbyID uuid.UUID, limit int) ([]models.HistoryEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := `
	SELECT ` + historyColumns + ` FROM (
		SELECT ` + historyColumns + ` FROM history_events
		WHERE lobby_id = $1
		ORDER BY seq DESC
		LIMIT NULLIF($2, 0)
	) latest
	ORDER BY seq`
	return s.queryHistory(ctx, q, lobbyID, limit)
}

// ListHistoryByType returns every event of the given types in append order.
func (s *Store) ListHistoryByType(ctx context.Context, lobbyID uuid.UUID, types ...models.HistoryEventType) ([]models.HistoryEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	q := `SELECT ` + historyColumns + ` FROM history_events WHERE lobby_id = $1 AND type = ANY($2) ORDER BY seq`
	return s.queryHistory(ctx, q, lobbyID, names)
}

func (s *Store) queryHistory(ctx context.Context, q string, args ...any) ([]models.HistoryEvent, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err, "history")
	}
	defer rows.Close()

	var events []models.HistoryEvent
	for rows.Next() {
		ev, err := scanHistory(rows)
		if err != nil {
			return nil, translate(err, "history event")
		}
		events = append(events, ev)
	}
	return events, translate(rows.Err(), "history")
}
