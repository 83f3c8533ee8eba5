package stats

import (
	"context"
	"testing"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedViews(t *testing.T, repo *storage.MemoryStatRepo, listingID string, day time.Time, views int64) {
	t.Helper()
	err := repo.ApplyDelta(context.Background(), listingID, day, &models.StatDelta{Views: views})
	require.NoError(t, err)
}

func TestCategoryComparison(t *testing.T) {
	statRepo := storage.NewMemoryStatRepo()
	listingRepo := storage.NewMemoryListingRepo()
	svc := NewCompareService(statRepo, listingRepo, listingRepo)

	listingRepo.Put(&models.Listing{ID: "subject", CategoryID: "furniture"})
	listingRepo.Put(&models.Listing{ID: "p1", CategoryID: "furniture"})
	listingRepo.Put(&models.Listing{ID: "p2", CategoryID: "furniture"})
	listingRepo.Put(&models.Listing{ID: "p3", CategoryID: "furniture"})
	listingRepo.Put(&models.Listing{ID: "other", CategoryID: "cars"})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedViews(t, statRepo, "subject", now, 90)
	seedViews(t, statRepo, "p1", now, 10)
	seedViews(t, statRepo, "p2", now.AddDate(0, 0, -3), 20)
	seedViews(t, statRepo, "p3", now, 60)
	seedViews(t, statRepo, "other", now, 500)

	cmp, err := svc.CategoryComparison(context.Background(), "subject", 7, now)
	require.NoError(t, err)

	assert.Equal(t, 3, cmp.PeerCount)
	assert.Equal(t, int64(90), cmp.Views)
	assert.InDelta(t, 30.0, cmp.AverageViews, 0.001)
	assert.Equal(t, 100, cmp.Percentile) // all three peers have fewer views
	assert.Equal(t, 200, cmp.PercentDiff)
	assert.Equal(t, LabelExceptional, cmp.Label)
}

func TestCategoryComparisonExcludesPeersOutsideWindow(t *testing.T) {
	statRepo := storage.NewMemoryStatRepo()
	listingRepo := storage.NewMemoryListingRepo()
	svc := NewCompareService(statRepo, listingRepo, listingRepo)

	listingRepo.Put(&models.Listing{ID: "subject", CategoryID: "furniture"})
	listingRepo.Put(&models.Listing{ID: "stale", CategoryID: "furniture"})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedViews(t, statRepo, "subject", now, 5)
	// The peer's only activity is before the window.
	seedViews(t, statRepo, "stale", now.AddDate(0, 0, -30), 100)

	cmp, err := svc.CategoryComparison(context.Background(), "subject", 7, now)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp.PeerCount)
	assert.Equal(t, 100, cmp.Percentile)
	assert.Equal(t, LabelNoPeers, cmp.Label)
}

func TestCategoryComparisonNoPeers(t *testing.T) {
	statRepo := storage.NewMemoryStatRepo()
	listingRepo := storage.NewMemoryListingRepo()
	svc := NewCompareService(statRepo, listingRepo, listingRepo)

	listingRepo.Put(&models.Listing{ID: "alone", CategoryID: "rarities"})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cmp, err := svc.CategoryComparison(context.Background(), "alone", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 100, cmp.Percentile)
	assert.Equal(t, LabelNoPeers, cmp.Label)
	assert.Equal(t, 0, cmp.PeerCount)
}

func TestCategoryComparisonUnknownListing(t *testing.T) {
	statRepo := storage.NewMemoryStatRepo()
	listingRepo := storage.NewMemoryListingRepo()
	svc := NewCompareService(statRepo, listingRepo, listingRepo)

	_, err := svc.CategoryComparison(context.Background(), "ghost", 7, time.Now())
	assert.Error(t, err)
}

func TestPerformanceLabelBuckets(t *testing.T) {
	cases := []struct {
		diff int
		want string
	}{
		{250, LabelExceptional},
		{200, LabelExceptional},
		{150, LabelExcellent},
		{60, LabelVeryGood},
		{0, LabelAboveAverage},
		{-10, LabelAverage},
		{-25, LabelAverage},
		{-40, LabelBelowAverage},
		{-80, LabelNeedsImprovement},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, performanceLabel(tc.diff), "diff %d", tc.diff)
	}
}

func TestTrend(t *testing.T) {
	cases := []struct {
		current, previous int64
		direction         string
		percent           int
	}{
		{100, 50, "up", 100},
		{0, 50, "down", 100},
		{25, 50, "down", 50},
		{50, 50, "neutral", 0},
		{10, 0, "up", 100},
		{0, 0, "neutral", 0},
		{51, 50, "up", 2},
	}
	for _, tc := range cases {
		tr := Trend(tc.current, tc.previous)
		assert.Equal(t, tc.direction, tr.Direction, "current=%d previous=%d", tc.current, tc.previous)
		assert.Equal(t, tc.percent, tr.Percent, "current=%d previous=%d", tc.current, tc.previous)
	}
}
