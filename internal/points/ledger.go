// Package points maintains user progression: point totals, level walks
// over an injected level table, and the append-only history behind them.
package points

import (
	"fmt"

	"github.com/marketpulse/listing-insights/internal/models"
)

// Ledger is the deterministic mapping from point totals to level state.
// It holds an immutable validated level table and mutates progression
// snapshots in place; it never touches storage.
type Ledger struct {
	table models.LevelTable
}

// NewLedger validates the table and returns a ledger over it.
func NewLedger(table models.LevelTable) (*Ledger, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid level table: %w", err)
	}
	return &Ledger{table: table}, nil
}

// NewSnapshot returns the level-1 zero-point snapshot for a user.
func (l *Ledger) NewSnapshot(userID string) *models.UserProgress {
	return &models.UserProgress{
		UserID:            userID,
		Level:             l.table[0].Level,
		LevelName:         l.table[0].Name,
		PointsToNextLevel: l.width(0),
	}
}

// Grant adds delta points and walks the level table forward until the
// total no longer meets the next threshold. A single large grant can
// cross several thresholds; the walk happens here, in one call. Returns
// the number of levels gained.
func (l *Ledger) Grant(p *models.UserProgress, delta int64) int {
	p.TotalPoints += delta
	p.CurrentLevelPoints += delta

	idx := l.indexOf(p.Level)
	levelUps := 0
	for idx+1 < len(l.table) && p.TotalPoints >= l.table[idx+1].Threshold {
		idx++
		levelUps++
		p.Level = l.table[idx].Level
		p.LevelName = l.table[idx].Name
		p.CurrentLevelPoints = p.TotalPoints - l.table[idx].Threshold
	}
	p.PointsToNextLevel = l.width(idx)
	return levelUps
}

// Revoke subtracts delta points, clamping the total and the current
// level accumulator at zero. Level is never re-derived downward; a
// penalty does not demote.
func (l *Ledger) Revoke(p *models.UserProgress, delta int64) {
	p.TotalPoints -= delta
	if p.TotalPoints < 0 {
		p.TotalPoints = 0
	}
	p.CurrentLevelPoints -= delta
	if p.CurrentLevelPoints < 0 {
		p.CurrentLevelPoints = 0
	}
}

// width is the point span of the level at idx, 0 at the top level.
func (l *Ledger) width(idx int) int64 {
	if idx+1 >= len(l.table) {
		return 0
	}
	return l.table[idx+1].Threshold - l.table[idx].Threshold
}

// indexOf maps a level number to its table position, falling back to
// the first entry for levels the table does not know.
func (l *Ledger) indexOf(level int) int {
	for i, e := range l.table {
		if e.Level == level {
			return i
		}
	}
	return 0
}
