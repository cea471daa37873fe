package repository

import (
	"context"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, name, description, multiplier, is_active, start_time, end_time`

type EventRepository struct {
	db Querier
}

func NewEventRepository(db Querier) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Multiplier, &e.IsActive, &e.StartTime, &e.EndTime); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListActiveEvents returns events still flagged active, expired or not.
func (r *EventRepository) ListActiveEvents(ctx context.Context) ([]*domain.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE is_active ORDER BY start_time, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *EventRepository) CreateEvent(ctx context.Context, e *domain.Event) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO events (name, description, multiplier, is_active, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.Name, e.Description, e.Multiplier, e.IsActive, e.StartTime, e.EndTime,
	).Scan(&e.ID)
}

// DeactivateEvent flips the flag and reports whether this call did it.
func (r *EventRepository) DeactivateEvent(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE events SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
