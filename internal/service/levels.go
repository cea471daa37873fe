package service

import (
	"fmt"
	"sort"

	"divan_bot/internal/domain"
)

// DefaultLevels is the six-tier table used in production.
var DefaultLevels = []domain.Level{
	{Number: 1, Name: "Suscriptor Íntimo", MinPoints: 0},
	{Number: 2, Name: "Conocedor Apasionado", MinPoints: 100},
	{Number: 3, Name: "Maestro del Deseo", MinPoints: 500},
	{Number: 4, Name: "Leyenda VIP", MinPoints: 1000},
	{Number: 5, Name: "Ícono VIP", MinPoints: 2000},
	{Number: 6, Name: "Leyenda Suprema", MinPoints: 3500},
}

// LevelResolver maps point totals to levels. It is stateless after
// construction and safe for concurrent use.
type LevelResolver struct {
	levels []domain.Level
}

// NewLevelResolver validates the table: it must start at 0 points with
// strictly increasing thresholds and level numbers.
func NewLevelResolver(levels []domain.Level) (*LevelResolver, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}
	if levels[0].MinPoints != 0 {
		return nil, fmt.Errorf("first level must start at 0 points, got %d", levels[0].MinPoints)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].MinPoints <= levels[i-1].MinPoints {
			return nil, fmt.Errorf("level %d threshold %d is not above %d",
				levels[i].Number, levels[i].MinPoints, levels[i-1].MinPoints)
		}
		if levels[i].Number <= levels[i-1].Number {
			return nil, fmt.Errorf("level numbers must increase at index %d", i)
		}
	}
	return &LevelResolver{levels: append([]domain.Level(nil), levels...)}, nil
}

// MustLevelResolver panics on an invalid table. Meant for package-level tables.
func MustLevelResolver(levels []domain.Level) *LevelResolver {
	r, err := NewLevelResolver(levels)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *LevelResolver) index(points int64) int {
	// first level whose threshold is above points, minus one
	i := sort.Search(len(r.levels), func(i int) bool { return r.levels[i].MinPoints > points })
	if i == 0 {
		return 0
	}
	return i - 1
}

// LevelFor returns the highest level whose threshold is <= points.
func (r *LevelResolver) LevelFor(points int64) domain.Level {
	return r.levels[r.index(points)]
}

// Level returns the table row for a level number, clamped to the table.
func (r *LevelResolver) Level(number int) domain.Level {
	for _, l := range r.levels {
		if l.Number == number {
			return l
		}
	}
	if number > r.levels[len(r.levels)-1].Number {
		return r.levels[len(r.levels)-1]
	}
	return r.levels[0]
}

func (r *LevelResolver) Levels() []domain.Level {
	return append([]domain.Level(nil), r.levels...)
}

// Progress reports the distance to the next level. At the top level Next is
// nil and PointsToNext is 0.
func (r *LevelResolver) Progress(points int64) domain.LevelProgress {
	i := r.index(points)
	p := domain.LevelProgress{Current: r.levels[i], Points: points, Percent: 100}
	if i+1 < len(r.levels) {
		next := r.levels[i+1]
		p.Next = &next
		p.PointsToNext = next.MinPoints - points
		span := next.MinPoints - p.Current.MinPoints
		p.Percent = int((points - p.Current.MinPoints) * 100 / span)
	}
	return p
}

// CheckForLevelUp raises u.Level to match u.Points and reports whether it
// changed. It never lowers the level.
func (r *LevelResolver) CheckForLevelUp(u *domain.User) bool {
	lvl := r.LevelFor(u.Points).Number
	if lvl > u.Level {
		u.Level = lvl
		return true
	}
	return false
}
