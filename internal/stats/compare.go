package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/storage"
)

// Performance labels bucketed by percent difference from the cohort
// average.
const (
	LabelExceptional      = "exceptional"
	LabelExcellent        = "excellent"
	LabelVeryGood         = "very good"
	LabelAboveAverage     = "above average"
	LabelAverage          = "average"
	LabelBelowAverage     = "below average"
	LabelNeedsImprovement = "needs improvement"
	LabelNoPeers          = "no peers"
)

// CompareService positions listings against their category cohort from the
// stored daily aggregates; it never re-scans raw events.
type CompareService struct {
	stats    storage.StatRepo
	listings storage.ListingRepo
	cohort   storage.CohortRepo
}

// NewCompareService constructs a CompareService.
func NewCompareService(stats storage.StatRepo, listings storage.ListingRepo, cohort storage.CohortRepo) *CompareService {
	return &CompareService{stats: stats, listings: listings, cohort: cohort}
}

// CategoryComparison compares the listing's views over the trailing window
// (windowDays calendar days including today) against all other listings in
// its category. Peers without a single day row in the window are excluded.
func (s *CompareService) CategoryComparison(ctx context.Context, listingID string, windowDays int, now time.Time) (*models.CategoryComparison, error) {
	if windowDays < 1 {
		windowDays = 1
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		return nil, fmt.Errorf("listing %s not found", listingID)
	}

	to := now
	from := now.AddDate(0, 0, -(windowDays - 1))

	subjectViews, _, err := s.stats.SumViews(ctx, listingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum subject views: %w", err)
	}

	peerIDs, err := s.cohort.Peers(ctx, listing.CategoryID, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load category peers: %w", err)
	}

	cmp := &models.CategoryComparison{
		ListingID:  listingID,
		CategoryID: listing.CategoryID,
		WindowDays: windowDays,
		Views:      subjectViews,
	}

	var peerTotal int64
	var fewer int
	for _, id := range peerIDs {
		views, hasRows, err := s.stats.SumViews(ctx, id, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to sum peer views: %w", err)
		}
		if !hasRows {
			continue
		}
		cmp.PeerCount++
		peerTotal += views
		if views < subjectViews {
			fewer++
		}
	}

	if cmp.PeerCount == 0 {
		cmp.Percentile = 100
		cmp.Label = LabelNoPeers
		return cmp, nil
	}

	cmp.AverageViews = float64(peerTotal) / float64(cmp.PeerCount)
	cmp.Percentile = int(math.Round(float64(fewer) / float64(cmp.PeerCount) * 100))
	if cmp.AverageViews > 0 {
		cmp.PercentDiff = int(math.Round((float64(subjectViews) - cmp.AverageViews) / cmp.AverageViews * 100))
	}
	cmp.Label = performanceLabel(cmp.PercentDiff)
	return cmp, nil
}

func performanceLabel(percentDiff int) string {
	switch {
	case percentDiff >= 200:
		return LabelExceptional
	case percentDiff >= 100:
		return LabelExcellent
	case percentDiff >= 50:
		return LabelVeryGood
	case percentDiff >= 0:
		return LabelAboveAverage
	case percentDiff >= -25:
		return LabelAverage
	case percentDiff >= -50:
		return LabelBelowAverage
	default:
		return LabelNeedsImprovement
	}
}

// Trend compares a metric between two periods. A zero previous period is
// "up 100%" when the current period has activity and neutral otherwise;
// direction always follows the sign of the raw delta.
func Trend(current, previous int64) models.Trend {
	if previous == 0 {
		if current > 0 {
			return models.Trend{Direction: "up", Percent: 100}
		}
		return models.Trend{Direction: "neutral", Percent: 0}
	}

	delta := current - previous
	percent := int(math.Round(math.Abs(float64(delta) / float64(previous) * 100)))
	switch {
	case delta > 0:
		return models.Trend{Direction: "up", Percent: percent}
	case delta < 0:
		return models.Trend{Direction: "down", Percent: percent}
	default:
		return models.Trend{Direction: "neutral", Percent: 0}
	}
}
