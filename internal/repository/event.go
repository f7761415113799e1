package repository

import (
	"context"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository is the persisted activity feed behind the admin log.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Append(ctx context.Context, ev *model.PlatformEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO platform_events (id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.ID, ev.Type, []byte(ev.Payload), ev.CreatedAt)
	return err
}

func (r *EventRepository) List(ctx context.Context, limit int) ([]model.PlatformEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, payload, created_at
		FROM platform_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.PlatformEvent
	for rows.Next() {
		var ev model.PlatformEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	if events == nil {
		events = []model.PlatformEvent{}
	}
	return events, nil
}
