package points

import (
	"context"
	"testing"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type levelUpRecorder struct {
	levels []int
}

func (n *levelUpRecorder) BadgeEarned(string, *models.Badge) {}

func (n *levelUpRecorder) LevelUp(userID string, level int, levelName string) {
	n.levels = append(n.levels, level)
}

func newServiceFixture(t *testing.T) (*Service, *storage.MemoryProgressRepo, *levelUpRecorder) {
	t.Helper()
	repo := storage.NewMemoryProgressRepo()
	ledger, err := NewLedger(smallTable())
	require.NoError(t, err)
	notifier := &levelUpRecorder{}
	return NewService(repo, ledger, notifier, nil, zap.NewNop()), repo, notifier
}

func TestAddPointsCreatesSnapshotAndHistory(t *testing.T) {
	svc, repo, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, "u1", 30, "listing_posted", "Posted a listing", "listing", "l1"))

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(30), p.TotalPoints)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "Bronze", p.LevelName)

	entries, err := svc.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(30), entries[0].Points)
	assert.Equal(t, "listing_posted", entries[0].Action)
	assert.Equal(t, "listing", entries[0].RefType)
	assert.NotEmpty(t, entries[0].ID)
}

func TestAddPointsMultiLevelSingleHistoryEntry(t *testing.T) {
	svc, repo, notifier := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, "u1", 260, "badge_earned", "", "", ""))

	p, _ := repo.Get(ctx, "u1")
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, int64(10), p.CurrentLevelPoints)
	assert.Equal(t, int64(0), p.PointsToNextLevel)

	entries, _ := svc.History(ctx, "u1", 10)
	assert.Len(t, entries, 1)

	// One notification for the whole walk, carrying the final level.
	assert.Equal(t, []int{3}, notifier.levels)
}

func TestAddPointsRejectsNonPositiveDelta(t *testing.T) {
	svc, _, _ := newServiceFixture(t)
	assert.Error(t, svc.AddPoints(context.Background(), "u1", 0, "x", "", "", ""))
	assert.Error(t, svc.AddPoints(context.Background(), "u1", -5, "x", "", "", ""))
}

func TestRemovePointsClampsAndLogsNegativeEntry(t *testing.T) {
	svc, repo, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, "u1", 50, "bonus", "", "", ""))
	require.NoError(t, svc.RemovePoints(ctx, "u1", 80, "penalty", "Spam listing", "", ""))

	p, _ := repo.Get(ctx, "u1")
	assert.Equal(t, int64(0), p.TotalPoints)
	assert.Equal(t, int64(0), p.CurrentLevelPoints)
	assert.Equal(t, 1, p.Level)

	entries, _ := svc.History(ctx, "u1", 10)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, int64(-80), entries[0].Points)
	assert.Equal(t, "penalty", entries[0].Action)
}

func TestProgressForUnknownUser(t *testing.T) {
	svc, _, _ := newServiceFixture(t)

	p, err := svc.Progress(context.Background(), "ghost")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(0), p.TotalPoints)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "Bronze", p.LevelName)
}

func TestLeaderboardOrdering(t *testing.T) {
	svc, _, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, "alice", 120, "x", "", "", ""))
	require.NoError(t, svc.AddPoints(ctx, "bob", 260, "x", "", "", ""))
	require.NoError(t, svc.AddPoints(ctx, "carol", 50, "x", "", "", ""))

	board, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].UserID)
	assert.Equal(t, "alice", board[1].UserID)
}
