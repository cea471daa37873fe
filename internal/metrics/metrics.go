// Package metrics holds the Prometheus collectors shared by services and
// HTTP middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PointsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_points_granted_total",
			Help: "Points granted to users",
		},
		[]string{"action_type"},
	)
	GrantsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_grants_rejected_total",
			Help: "Point grants rejected or clamped by the daily and weekly caps",
		},
		[]string{"action_type", "outcome"},
	)
	PointsSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_points_spent_total",
			Help: "Points deducted from users",
		},
		[]string{"action_type"},
	)
	MissionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_missions_completed_total",
			Help: "Mission completions by cadence",
		},
		[]string{"cadence"},
	)
	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_reward_purchases_total",
			Help: "Reward purchase attempts by result",
		},
		[]string{"result"},
	)
	AchievementsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_achievements_granted_total",
			Help: "Achievements granted",
		},
		[]string{"achievement"},
	)
	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "divan_level_ups_total",
			Help: "Level increases",
		},
	)
	EventsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "divan_events_expired_total",
			Help: "Multiplier events deactivated after their end time",
		},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divan_job_runs_total",
			Help: "Scheduled job executions by result",
		},
		[]string{"job", "result"},
	)

	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		PointsGranted,
		GrantsRejected,
		PointsSpent,
		MissionsCompleted,
		Purchases,
		AchievementsGranted,
		LevelUps,
		EventsExpired,
		JobRuns,
		RLRequests,
		RLBlocked,
	)
}
