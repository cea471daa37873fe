package repository

import (
	"context"
	"errors"
	"time"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reader holds every query that does not need a row lock.
type Reader interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByTgID(ctx context.Context, tgID int64) (*domain.User, error)
	FindUser(ctx context.Context, identifier string) (*domain.User, error)
	TopUsers(ctx context.Context, limit int) ([]*domain.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ActiveUserIDsSince(ctx context.Context, since time.Time) ([]int64, error)
	Stats(ctx context.Context, dayStart, weekStart time.Time) (*domain.Stats, error)

	SumPoints(ctx context.Context, userID int64, actionType string, from, to time.Time) (int64, error)
	CountPointLogs(ctx context.Context, userID int64) (int64, error)
	ListPointLogs(ctx context.Context, userID int64, limit int) ([]*domain.PointLog, error)

	GetMission(ctx context.Context, id string) (*domain.Mission, error)
	ListMissions(ctx context.Context, activeOnly bool) ([]*domain.Mission, error)
	ListCompletions(ctx context.Context, userID int64) ([]*domain.MissionCompletion, error)
	GetCompletion(ctx context.Context, userID int64, missionID, targetKey string) (*domain.MissionCompletion, error)
	CountCompletions(ctx context.Context, userID int64, cadence domain.Cadence) (int64, error)

	ListGrants(ctx context.Context, userID int64) ([]*domain.AchievementGrant, error)

	GetReward(ctx context.Context, id int64) (*domain.Reward, error)
	ListRewards(ctx context.Context, activeOnly bool) ([]*domain.Reward, error)
	CountPurchases(ctx context.Context, userID int64) (int64, error)

	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	ListActiveEvents(ctx context.Context) ([]*domain.Event, error)
}

// Tx is a unit of work. Lock* methods hold the row until commit.
type Tx interface {
	Reader

	UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error)
	LockUser(ctx context.Context, id int64) (*domain.User, error)
	SaveUserProgress(ctx context.Context, u *domain.User) error
	ResetWeeklyStreaks(ctx context.Context, keep []int64) (int64, error)
	ResetSeason(ctx context.Context) (int64, error)

	InsertPointLog(ctx context.Context, l *domain.PointLog) error

	CreateMission(ctx context.Context, m *domain.Mission) error
	SetMissionActive(ctx context.Context, id string, active bool) error
	SaveCompletion(ctx context.Context, c *domain.MissionCompletion) error

	InsertGrant(ctx context.Context, g *domain.AchievementGrant) (bool, error)

	CreateReward(ctx context.Context, r *domain.Reward) error
	UpdateReward(ctx context.Context, r *domain.Reward) error
	LockReward(ctx context.Context, id int64) (*domain.Reward, error)
	InsertPurchase(ctx context.Context, p *domain.Purchase) error

	CreateEvent(ctx context.Context, e *domain.Event) error
	DeactivateEvent(ctx context.Context, id int64) (bool, error)
}

// Store is the persistence handle injected into services.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

type repos struct {
	*UserRepository
	*PointLogRepository
	*MissionRepository
	*AchievementRepository
	*RewardRepository
	*EventRepository
}

func newRepos(q Querier) repos {
	return repos{
		UserRepository:        NewUserRepository(q),
		PointLogRepository:    NewPointLogRepository(q),
		MissionRepository:     NewMissionRepository(q),
		AchievementRepository: NewAchievementRepository(q),
		RewardRepository:      NewRewardRepository(q),
		EventRepository:       NewEventRepository(q),
	}
}

// PgStore is the Postgres Store.
type PgStore struct {
	repos
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{repos: newRepos(pool), pool: pool}
}

type pgTx struct {
	repos
}

// InTx runs fn in a single transaction and commits when fn returns nil.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTx{repos: newRepos(tx)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var (
	_ Store = (*PgStore)(nil)
	_ Tx    = pgTx{}
)

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
