package storage

import (
	"context"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
)

// =============================================
// DAILY STATISTICS
// =============================================

// StatRepo persists the per-listing-per-day aggregate rows. The day row is
// created lazily by the first increment; every write is a single atomic
// upsert so concurrent events never lose updates.
type StatRepo interface {
	// ApplyDelta merges the increment set into the (listingID, day) row,
	// creating it when absent. All-or-nothing per call.
	ApplyDelta(ctx context.Context, listingID string, day time.Time, delta *models.StatDelta) error

	// UpdateAvgTime folds one time-on-page sample into the day's running
	// average using the incremental mean with the given sample count.
	UpdateAvgTime(ctx context.Context, listingID string, day time.Time, seconds float64, count int64) error

	// RecordOffer increments offers_received and folds amount into the
	// running offer average in one atomic statement.
	RecordOffer(ctx context.Context, listingID string, day time.Time, amount float64) error

	// Get returns the day row, or nil when none exists.
	Get(ctx context.Context, listingID string, day time.Time) (*models.DailyListingStat, error)

	// Range returns day rows for [from, to] ordered by date ascending.
	Range(ctx context.Context, listingID string, from, to time.Time) ([]*models.DailyListingStat, error)

	// SumViews sums views over [from, to]. The bool reports whether any
	// day row exists in the window.
	SumViews(ctx context.Context, listingID string, from, to time.Time) (int64, bool, error)
}

// =============================================
// LISTINGS / ROLLUPS
// =============================================

// ListingRepo reads listings and maintains their lifetime rollup fields.
type ListingRepo interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
	GetRollup(ctx context.Context, id string) (*models.ListingRollup, error)

	// IncrementRollup adds the given deltas to the lifetime rollup fields.
	IncrementRollup(ctx context.Context, id string, clicks, uniqueVisitors, galleryViews, videoPlays int64) error

	// UpdateAvgTime folds one time-on-page sample into the lifetime
	// running average, using the stored clicks rollup as the count.
	UpdateAvgTime(ctx context.Context, id string, seconds float64) error
}

// CohortRepo supplies the peer set for category comparisons.
type CohortRepo interface {
	// Peers returns ids of all other listings sharing the category.
	Peers(ctx context.Context, categoryID, excludeListingID string) ([]string, error)
}

// =============================================
// BADGES
// =============================================

// BadgeRepo stores badge definitions and awards.
type BadgeRepo interface {
	ListActive(ctx context.Context) ([]*models.Badge, error)
	GetBySlug(ctx context.Context, slug string) (*models.Badge, error)

	// HasAward reports whether the user already holds the badge.
	HasAward(ctx context.Context, userID, badgeID string) (bool, error)

	// CreateAward inserts the award. Returns false without error when the
	// (user, badge) pair already exists.
	CreateAward(ctx context.Context, award *models.UserBadge) (bool, error)
}

// =============================================
// PROGRESSION
// =============================================

// ProgressRepo stores progression snapshots and the points history.
type ProgressRepo interface {
	Get(ctx context.Context, userID string) (*models.UserProgress, error)

	// Update runs fn against the locked snapshot for userID, creating a
	// level-1 zero-point snapshot when none exists, then persists the
	// mutated snapshot together with the history entry fn returns, all in
	// one atomic unit.
	Update(ctx context.Context, userID string, fn func(p *models.UserProgress) (*models.PointsHistoryEntry, error)) error

	History(ctx context.Context, userID string, limit int) ([]*models.PointsHistoryEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.UserProgress, error)
}
