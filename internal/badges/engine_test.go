package badges

import (
	"context"
	"errors"
	"testing"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingGranter struct {
	calls int
	err   error
}

func (g *recordingGranter) AddPoints(ctx context.Context, userID string, delta int64, action, description, refType, refID string) error {
	g.calls++
	return g.err
}

type recordingNotifier struct {
	badges []string
}

func (n *recordingNotifier) BadgeEarned(userID string, badge *models.Badge) {
	n.badges = append(n.badges, badge.Slug)
}

func (n *recordingNotifier) LevelUp(string, int, string) {}

func sellerBadge(points int64) *models.Badge {
	return &models.Badge{
		ID:   "b1",
		Slug: "first-sale",
		Name: "First Sale",
		Criteria: models.Criteria{
			MinCounts: map[models.CriteriaField]int64{models.FieldItemsSold: 1},
		},
		Points:   points,
		IsActive: true,
	}
}

func newEngineFixture(badge *models.Badge, src AttributeSource, granter PointsGranter) (*Engine, *storage.MemoryBadgeRepo, *recordingNotifier) {
	repo := storage.NewMemoryBadgeRepo()
	if badge != nil {
		repo.Put(badge)
	}
	notifier := &recordingNotifier{}
	eval := NewEvaluator(src, false, zap.NewNop())
	engine := NewEngine(repo, eval, granter, notifier, nil, zap.NewNop())
	return engine, repo, notifier
}

func TestCheckAndAwardGrantsOnce(t *testing.T) {
	src := NewMemoryAttributeSource()
	src.SetCount("u1", models.FieldItemsSold, 1)
	granter := &recordingGranter{}
	badge := sellerBadge(50)
	engine, repo, notifier := newEngineFixture(badge, src, granter)
	ctx := context.Background()

	awarded, err := engine.CheckAndAward(ctx, "u1", badge)
	require.NoError(t, err)
	assert.True(t, awarded)

	has, err := repo.HasAward(ctx, "u1", badge.ID)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 1, granter.calls)
	assert.Equal(t, []string{"first-sale"}, notifier.badges)

	// Idempotent: a second call is a success-shaped no-op.
	awarded, err = engine.CheckAndAward(ctx, "u1", badge)
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.Equal(t, 1, granter.calls)
}

func TestCheckAndAwardIneligible(t *testing.T) {
	src := NewMemoryAttributeSource() // zero items sold
	badge := sellerBadge(50)
	engine, repo, _ := newEngineFixture(badge, src, &recordingGranter{})

	awarded, err := engine.CheckAndAward(context.Background(), "u1", badge)
	require.NoError(t, err)
	assert.False(t, awarded)

	has, _ := repo.HasAward(context.Background(), "u1", badge.ID)
	assert.False(t, has)
}

func TestCheckAndAwardPointFailureKeepsAward(t *testing.T) {
	src := NewMemoryAttributeSource()
	src.SetCount("u1", models.FieldItemsSold, 1)
	granter := &recordingGranter{err: errors.New("ledger down")}
	badge := sellerBadge(50)
	engine, repo, notifier := newEngineFixture(badge, src, granter)

	awarded, err := engine.CheckAndAward(context.Background(), "u1", badge)
	require.NoError(t, err)
	assert.True(t, awarded)

	has, _ := repo.HasAward(context.Background(), "u1", badge.ID)
	assert.True(t, has)
	assert.Equal(t, []string{"first-sale"}, notifier.badges)
}

func TestCheckAndAwardZeroPointBadgeSkipsGranter(t *testing.T) {
	src := NewMemoryAttributeSource()
	src.SetCount("u1", models.FieldItemsSold, 1)
	granter := &recordingGranter{}
	badge := sellerBadge(0)
	engine, _, _ := newEngineFixture(badge, src, granter)

	awarded, err := engine.CheckAndAward(context.Background(), "u1", badge)
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.Equal(t, 0, granter.calls)
}

func TestCheckAndAwardAllIsolatesBadges(t *testing.T) {
	src := NewMemoryAttributeSource()
	src.SetCount("u1", models.FieldItemsSold, 3)
	src.SetFlag("u1", models.FieldVerified, true)

	repo := storage.NewMemoryBadgeRepo()
	repo.Put(sellerBadge(10))
	repo.Put(&models.Badge{
		ID:   "b2",
		Slug: "trusted",
		Name: "Trusted",
		Criteria: models.Criteria{
			Flags: map[models.CriteriaField]bool{models.FieldVerified: true},
		},
		IsActive: true,
	})
	repo.Put(&models.Badge{
		ID:       "b3",
		Slug:     "inactive",
		Name:     "Inactive",
		Criteria: models.Criteria{MinCounts: map[models.CriteriaField]int64{models.FieldItemsSold: 1}},
		IsActive: false,
	})
	repo.Put(&models.Badge{
		ID:       "b4",
		Slug:     "unreachable",
		Name:     "Unreachable",
		Criteria: models.Criteria{MinCounts: map[models.CriteriaField]int64{models.FieldItemsSold: 100}},
		IsActive: true,
	})

	eval := NewEvaluator(src, false, zap.NewNop())
	engine := NewEngine(repo, eval, &recordingGranter{}, &recordingNotifier{}, nil, zap.NewNop())

	awarded, err := engine.CheckAndAwardAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, awarded)
}

func TestBusinessEventHooks(t *testing.T) {
	src := NewMemoryAttributeSource()
	src.SetCount("u1", models.FieldItemsSold, 1)
	badge := sellerBadge(10)
	engine, repo, _ := newEngineFixture(badge, src, &recordingGranter{})

	engine.OnItemSold(context.Background(), "u1")

	has, _ := repo.HasAward(context.Background(), "u1", badge.ID)
	assert.True(t, has)
}
