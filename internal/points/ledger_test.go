package points

import (
	"testing"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallTable() models.LevelTable {
	return models.LevelTable{
		{Level: 1, Threshold: 0, Name: "Bronze"},
		{Level: 2, Threshold: 100, Name: "Silver"},
		{Level: 3, Threshold: 250, Name: "Gold"},
	}
}

func TestNewLedgerRejectsInvalidTables(t *testing.T) {
	_, err := NewLedger(nil)
	assert.Error(t, err)

	_, err = NewLedger(models.LevelTable{{Level: 1, Threshold: 10, Name: "X"}})
	assert.Error(t, err)

	_, err = NewLedger(models.LevelTable{
		{Level: 1, Threshold: 0, Name: "A"},
		{Level: 2, Threshold: 100, Name: "B"},
		{Level: 3, Threshold: 100, Name: "C"},
	})
	assert.Error(t, err)

	_, err = NewLedger(models.DefaultLevelTable())
	assert.NoError(t, err)
}

func TestGrantSingleLevelUp(t *testing.T) {
	l, err := NewLedger(smallTable())
	require.NoError(t, err)

	p := l.NewSnapshot("u1")
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "Bronze", p.LevelName)
	assert.Equal(t, int64(100), p.PointsToNextLevel)

	ups := l.Grant(p, 120)
	assert.Equal(t, 1, ups)
	assert.Equal(t, int64(120), p.TotalPoints)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, "Silver", p.LevelName)
	assert.Equal(t, int64(20), p.CurrentLevelPoints)
	assert.Equal(t, int64(150), p.PointsToNextLevel)
}

func TestGrantCrossesTwoThresholdsInOneCall(t *testing.T) {
	l, err := NewLedger(smallTable())
	require.NoError(t, err)

	p := l.NewSnapshot("u1")
	ups := l.Grant(p, 260)

	assert.Equal(t, 2, ups)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, "Gold", p.LevelName)
	assert.Equal(t, int64(10), p.CurrentLevelPoints)
	assert.Equal(t, int64(0), p.PointsToNextLevel) // top level
}

func TestGrantBelowThresholdKeepsLevel(t *testing.T) {
	l, _ := NewLedger(smallTable())

	p := l.NewSnapshot("u1")
	ups := l.Grant(p, 99)
	assert.Equal(t, 0, ups)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(99), p.CurrentLevelPoints)
}

func TestRevokeClampsAtZeroAndKeepsLevel(t *testing.T) {
	l, _ := NewLedger(smallTable())

	p := l.NewSnapshot("u1")
	l.Grant(p, 120) // level 2, 20 into the level

	l.Revoke(p, 500)
	assert.Equal(t, int64(0), p.TotalPoints)
	assert.Equal(t, int64(0), p.CurrentLevelPoints)
	// Levels are never revoked by point removal.
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, "Silver", p.LevelName)
}

func TestGrantAfterRevokeWalksFromCurrentLevel(t *testing.T) {
	l, _ := NewLedger(smallTable())

	p := l.NewSnapshot("u1")
	l.Grant(p, 120)
	l.Revoke(p, 120)

	// Total is back to zero; a new grant cannot demote, only advance.
	ups := l.Grant(p, 50)
	assert.Equal(t, 0, ups)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, int64(50), p.TotalPoints)
}
