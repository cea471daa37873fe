package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"
)

// StreakBonuses is indexed by the weekly streak, which cycles 1..5.
var StreakBonuses = []int64{0, 11, 12, 13, 14, 15}

const (
	MonthBonus        int64 = 50
	SixMonthMilestone int64 = 100
	YearMilestone     int64 = 200
)

// BonusReport summarises one bonus run.
type BonusReport struct {
	Users  int   `json:"users"`
	Points int64 `json:"points"`
}

// BonusService pays the periodic loyalty bonuses. All bonus grants are forced.
type BonusService struct {
	deps   Deps
	ledger *PointLedger
	log    *slog.Logger
}

func NewBonusService(deps Deps, ledger *PointLedger) *BonusService {
	return &BonusService{deps: deps.normalize(), ledger: ledger, log: logger.With("component", "bonus")}
}

// AwardWeeklyStreaks pays users who were active since the start of the
// previous week and resets the streak of everyone else. Users already paid
// this week are skipped, so the job can be retried.
func (b *BonusService) AwardWeeklyStreaks(ctx context.Context) (BonusReport, error) {
	var report BonusReport
	now := b.deps.Clock.Now()
	thisWeek := weekStart(now, b.deps.Location)
	prevWeek := thisWeek.AddDate(0, 0, -7)

	lctx, cancel := b.deps.withTimeout(ctx)
	active, err := b.deps.Store.ActiveUserIDsSince(lctx, prevWeek)
	cancel()
	if err != nil {
		logFailure(b.log, "weekly_streaks", err)
		return report, err
	}

	for _, id := range active {
		res, err := b.payOnce(ctx, id, domain.ActionStreakBonus, thisWeek, func(u *domain.User) (int64, string) {
			u.WeeklyStreak = u.WeeklyStreak%(len(StreakBonuses)-1) + 1
			return StreakBonuses[u.WeeklyStreak], fmt.Sprintf("Racha semanal %d", u.WeeklyStreak)
		})
		if err != nil {
			return report, err
		}
		if res != nil {
			report.Users++
			report.Points += res.Granted
		}
	}

	rctx, cancel := b.deps.withTimeout(ctx)
	defer cancel()
	err = b.deps.Store.InTx(rctx, func(tx repository.Tx) error {
		n, err := tx.ResetWeeklyStreaks(rctx, active)
		if err == nil && n > 0 {
			b.log.Info("weekly streaks reset", "users", n)
		}
		return err
	})
	if err != nil {
		logFailure(b.log, "reset_streaks", err)
		return report, err
	}
	b.log.Info("weekly streak bonus paid", "users", report.Users, "points", report.Points)
	return report, nil
}

// AwardTenureBonuses pays the monthly tenure bonus once per calendar month
// and the six and twelve month milestones once each.
func (b *BonusService) AwardTenureBonuses(ctx context.Context) (BonusReport, error) {
	var report BonusReport
	now := b.deps.Clock.Now()

	lctx, cancel := b.deps.withTimeout(ctx)
	ids, err := b.deps.Store.ListUserIDs(lctx)
	cancel()
	if err != nil {
		logFailure(b.log, "tenure_bonus", err)
		return report, err
	}

	month := monthStart(now, b.deps.Location)
	for _, id := range ids {
		paid := false
		res, err := b.payOnce(ctx, id, domain.ActionMonthBonus, month, func(u *domain.User) (int64, string) {
			if monthsBetween(u.CreatedAt, now) < 1 {
				return 0, ""
			}
			return MonthBonus, "Bonus mensual"
		})
		if err != nil {
			return report, err
		}
		if res != nil {
			paid = true
			report.Points += res.Granted
		}

		for _, ms := range []struct {
			months int
			amount int64
			// milestone totals paid before this one
			before int64
		}{
			{6, SixMonthMilestone, 0},
			{12, YearMilestone, SixMonthMilestone},
		} {
			res, err := b.payMilestone(ctx, id, now, ms.months, ms.amount, ms.before)
			if err != nil {
				return report, err
			}
			if res != nil {
				paid = true
				report.Points += res.Granted
			}
		}
		if paid {
			report.Users++
		}
	}
	b.log.Info("tenure bonuses paid", "users", report.Users, "points", report.Points)
	return report, nil
}

// payOnce grants the amount chosen by pick unless the user already received
// a bonus of this action type since from. pick may update the user row.
func (b *BonusService) payOnce(ctx context.Context, userID int64, action string, from time.Time, pick func(u *domain.User) (int64, string)) (*GrantResult, error) {
	ctx, cancel := b.deps.withTimeout(ctx)
	defer cancel()

	var res *GrantResult
	err := b.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		now := b.deps.Clock.Now()
		got, err := tx.SumPoints(ctx, userID, action, from, now.Add(time.Second))
		if err != nil {
			return err
		}
		if got > 0 {
			return nil
		}
		amount, desc := pick(u)
		if amount <= 0 {
			return nil
		}
		res, err = b.ledger.grantTx(ctx, tx, u, GrantRequest{
			UserID:      userID,
			Amount:      amount,
			ActionType:  action,
			Description: desc,
			Forced:      true,
		}, 1, now)
		return err
	})
	if err != nil {
		logFailure(b.log, "pay_bonus", err, "user_id", userID, "action_type", action)
		return nil, err
	}
	if res != nil {
		b.ledger.publish(ctx, res, action)
	}
	return res, nil
}

func (b *BonusService) payMilestone(ctx context.Context, userID int64, now time.Time, months int, amount, before int64) (*GrantResult, error) {
	ctx, cancel := b.deps.withTimeout(ctx)
	defer cancel()

	var res *GrantResult
	err := b.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		if monthsBetween(u.CreatedAt, now) < months {
			return nil
		}
		paid, err := tx.SumPoints(ctx, userID, domain.ActionMilestoneBonus, time.Time{}, now.Add(time.Second))
		if err != nil {
			return err
		}
		if paid > before {
			return nil
		}
		res, err = b.ledger.grantTx(ctx, tx, u, GrantRequest{
			UserID:      userID,
			Amount:      amount,
			ActionType:  domain.ActionMilestoneBonus,
			Description: fmt.Sprintf("Hito de %d meses", months),
			Forced:      true,
		}, 1, now)
		return err
	})
	if err != nil {
		logFailure(b.log, "pay_milestone", err, "user_id", userID)
		return nil, err
	}
	if res != nil {
		b.ledger.publish(ctx, res, domain.ActionMilestoneBonus)
	}
	return res, nil
}
