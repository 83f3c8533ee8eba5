package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketpulse/listing-insights/internal/metrics"
	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/notify"
	"github.com/marketpulse/listing-insights/internal/storage"
	"go.uber.org/zap"
)

// PointsGranter grants the point bonus attached to a badge.
type PointsGranter interface {
	AddPoints(ctx context.Context, userID string, delta int64, action, description, refType, refID string) error
}

// Engine decides badge awards. Awarding is the primary guarantee; the
// point bonus and the notification are best effort.
type Engine struct {
	repo     storage.BadgeRepo
	eval     *Evaluator
	points   PointsGranter
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEngine constructs a badge engine. points, notifier and m may be nil.
func NewEngine(repo storage.BadgeRepo, eval *Evaluator, points PointsGranter, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		repo:     repo,
		eval:     eval,
		points:   points,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// CheckAndAward evaluates one badge for a user and awards it when the
// criteria hold. At most one award ever exists per (user, badge); repeat
// calls are success-shaped no-ops returning false.
func (e *Engine) CheckAndAward(ctx context.Context, userID string, badge *models.Badge) (bool, error) {
	has, err := e.repo.HasAward(ctx, userID, badge.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing award: %w", err)
	}
	if has {
		return false, nil
	}

	eligible, _ := e.eval.Evaluate(ctx, userID, badge.Criteria)
	if !eligible {
		return false, nil
	}

	award := &models.UserBadge{
		ID:       uuid.New().String(),
		UserID:   userID,
		BadgeID:  badge.ID,
		EarnedAt: time.Now().UTC(),
	}
	created, err := e.repo.CreateAward(ctx, award)
	if err != nil {
		return false, fmt.Errorf("failed to create award: %w", err)
	}
	if !created {
		// Lost a race with a concurrent award; the invariant held.
		return false, nil
	}

	e.logger.Info("badge awarded",
		zap.String("user_id", userID),
		zap.String("badge", badge.Slug),
	)
	if e.metrics != nil {
		e.metrics.RecordBadgeAwarded(badge.Slug)
	}

	// The bonus never rolls back the award.
	if badge.Points > 0 && e.points != nil {
		err := e.points.AddPoints(ctx, userID, badge.Points,
			"badge_earned", fmt.Sprintf("Badge: %s", badge.Name), "badge", badge.ID)
		if err != nil {
			e.logger.Warn("failed to grant badge points",
				zap.String("user_id", userID),
				zap.String("badge", badge.Slug),
				zap.Error(err),
			)
		}
	}

	if e.notifier != nil {
		e.notifier.BadgeEarned(userID, badge)
	}
	return true, nil
}

// CheckAndAwardAll evaluates every active badge for the user. Failures
// are isolated per badge so one broken badge never blocks the rest.
// Returns the number of badges awarded.
func (e *Engine) CheckAndAwardAll(ctx context.Context, userID string) (int, error) {
	badges, err := e.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active badges: %w", err)
	}

	awarded := 0
	for _, badge := range badges {
		ok, err := e.CheckAndAward(ctx, userID, badge)
		if err != nil {
			e.logger.Warn("badge evaluation failed",
				zap.String("user_id", userID),
				zap.String("badge", badge.Slug),
				zap.Error(err),
			)
			if e.metrics != nil {
				e.metrics.RecordBadgeFailure(badge.Slug)
			}
			continue
		}
		if ok {
			awarded++
		}
	}
	return awarded, nil
}

// Business-event hooks. Each re-evaluates the user's badges after a
// domain event that can change eligibility.

// OnItemSold re-checks badges after a completed sale.
func (e *Engine) OnItemSold(ctx context.Context, userID string) {
	if _, err := e.CheckAndAwardAll(ctx, userID); err != nil {
		e.logger.Warn("badge re-check after sale failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// OnItemBought re-checks badges after a completed purchase.
func (e *Engine) OnItemBought(ctx context.Context, userID string) {
	if _, err := e.CheckAndAwardAll(ctx, userID); err != nil {
		e.logger.Warn("badge re-check after purchase failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// OnReviewGiven re-checks badges after a submitted review.
func (e *Engine) OnReviewGiven(ctx context.Context, userID string) {
	if _, err := e.CheckAndAwardAll(ctx, userID); err != nil {
		e.logger.Warn("badge re-check after review failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}
