package repository

import (
	"context"
	"strings"
	"time"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, tg_id, COALESCE(username, ''), COALESCE(first_name, ''), points, level, weekly_streak, created_at`

type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.TgID,
		&u.Username,
		&u.FirstName,
		&u.Points,
		&u.Level,
		&u.WeeklyStreak,
		&u.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tg_id = $1`, tgID))
}

// FindUser looks a user up by internal id, telegram id or @username.
func (r *UserRepository) FindUser(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimPrefix(strings.TrimSpace(identifier), "@")
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE id::text = $1 OR tg_id::text = $1 OR LOWER(username) = LOWER($1)
		 ORDER BY (tg_id::text = $1) DESC, id
		 LIMIT 1`,
		identifier,
	))
}

// LockUser reads the user with SELECT ... FOR UPDATE.
func (r *UserRepository) LockUser(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// UpsertUser creates the user on first contact and refreshes the profile
// fields afterwards. Balance and level are never touched here.
func (r *UserRepository) UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (tg_id, username, first_name, points, level, created_at)
		 VALUES ($1, $2, $3, 0, 1, $4)
		 ON CONFLICT (tg_id) DO UPDATE
		 SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
		     first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name)
		 RETURNING `+userColumns,
		u.TgID,
		u.Username,
		u.FirstName,
		u.CreatedAt,
	))
}

func (r *UserRepository) SaveUserProgress(ctx context.Context, u *domain.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET points = $1, level = $2, weekly_streak = $3 WHERE id = $4`,
		u.Points, u.Level, u.WeeklyStreak, u.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetWeeklyStreaks zeroes the streak of every user not in keep.
func (r *UserRepository) ResetWeeklyStreaks(ctx context.Context, keep []int64) (int64, error) {
	if keep == nil {
		keep = []int64{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET weekly_streak = 0 WHERE weekly_streak > 0 AND NOT (id = ANY($1))`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetSeason zeroes every user and clears their progress history.
func (r *UserRepository) ResetSeason(ctx context.Context) (int64, error) {
	for _, q := range []string{
		`DELETE FROM achievement_grants`,
		`DELETE FROM mission_completions`,
		`DELETE FROM point_logs`,
	} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return 0, err
		}
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET points = 0, level = 1, weekly_streak = 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TopUsers returns users ordered by balance.
func (r *UserRepository) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY points DESC, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *UserRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ActiveUserIDsSince returns users that earned points since the given time,
// ignoring bonus grants.
func (r *UserRepository) ActiveUserIDsSince(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT user_id FROM point_logs
		 WHERE created_at >= $1 AND delta > 0
		   AND action_type NOT IN ('streak_bonus', 'month_bonus', 'milestone_bonus')
		 ORDER BY user_id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Stats returns the season overview used by the admin panel.
func (r *UserRepository) Stats(ctx context.Context, dayStart, weekStart time.Time) (*domain.Stats, error) {
	s := &domain.Stats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(DISTINCT user_id) FROM point_logs WHERE created_at >= $1),
			(SELECT COUNT(DISTINCT user_id) FROM point_logs WHERE created_at >= $2),
			(SELECT COALESCE(SUM(points), 0) FROM users),
			(SELECT COALESCE(SUM(delta), 0) FROM point_logs WHERE created_at >= $1 AND delta > 0),
			(SELECT COUNT(*) FROM mission_completions),
			(SELECT COUNT(*) FROM mission_completions WHERE completed_at >= $1),
			(SELECT COUNT(*) FROM purchases),
			(SELECT COUNT(*) FROM missions WHERE is_active),
			(SELECT COUNT(*) FROM rewards WHERE is_active),
			(SELECT COUNT(*) FROM events WHERE is_active),
			(SELECT COUNT(*) FROM achievement_grants)`,
		dayStart, weekStart,
	).Scan(
		&s.TotalUsers,
		&s.ActiveUsersToday,
		&s.ActiveUsersWeek,
		&s.TotalPoints,
		&s.PointsGrantedToday,
		&s.MissionsCompleted,
		&s.CompletionsToday,
		&s.PurchasesTotal,
		&s.ActiveMissions,
		&s.ActiveRewards,
		&s.ActiveEvents,
		&s.AchievementsGranted,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
