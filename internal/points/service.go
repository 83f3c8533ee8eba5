package points

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

// Service applies point changes to progression snapshots. Every call
// produces exactly one history entry, committed atomically with the
// snapshot change. Level-up notifications are fire-and-forget.
type Service struct {
	repo     storage.ProgressRepo
	ledger   *Ledger
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService constructs a points service. notifier and m may be nil.
func NewService(repo storage.ProgressRepo, ledger *Ledger, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// AddPoints grants delta points to the user, walking any level-ups in
// the same atomic unit. delta must be positive.
func (s *Service) AddPoints(ctx context.Context, userID string, delta int64, action, description, refType, refID string) error {
	if delta <= 0 {
		return fmt.Errorf("point grant must be positive, got %d", delta)
	}

	var (
		levelUps  int
		newLevel  int
		levelName string
	)
	err := s.repo.Update(ctx, userID, func(p *models.UserProgress) (*models.PointsHistoryEntry, error) {
		s.normalize(p)
		levelUps = s.ledger.Grant(p, delta)
		newLevel = p.Level
		levelName = p.LevelName
		return s.historyEntry(userID, delta, action, description, refType, refID), nil
	})
	if err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}

	s.logger.Info("points granted",
		zap.String("user_id", userID),
		zap.Int64("points", delta),
		zap.String("action", action),
		zap.Int("level_ups", levelUps),
	)
	if s.metrics != nil {
		s.metrics.RecordPoints(delta, levelUps)
	}
	if levelUps > 0 && s.notifier != nil {
		s.notifier.LevelUp(userID, newLevel, levelName)
	}
	return nil
}

// RemovePoints takes delta points away, clamping at zero. The level is
// never demoted. delta must be positive.
func (s *Service) RemovePoints(ctx context.Context, userID string, delta int64, action, description, refType, refID string) error {
	if delta <= 0 {
		return fmt.Errorf("point removal must be positive, got %d", delta)
	}

	err := s.repo.Update(ctx, userID, func(p *models.UserProgress) (*models.PointsHistoryEntry, error) {
		s.normalize(p)
		s.ledger.Revoke(p, delta)
		return s.historyEntry(userID, -delta, action, description, refType, refID), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove points: %w", err)
	}

	s.logger.Info("points revoked",
		zap.String("user_id", userID),
		zap.Int64("points", delta),
		zap.String("action", action),
	)
	if s.metrics != nil {
		s.metrics.RecordPoints(-delta, 0)
	}
	return nil
}

// Progress returns the user's snapshot, or the virgin level-1 snapshot
// when the user has no point events yet.
func (s *Service) Progress(ctx context.Context, userID string) (*models.UserProgress, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s.ledger.NewSnapshot(userID), nil
	}
	return p, nil
}

// History returns the most recent point events, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.PointsHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.History(ctx, userID, limit)
}

// Leaderboard returns the top snapshots by total points.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*models.UserProgress, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.Leaderboard(ctx, limit)
}

// normalize fills in level metadata on snapshots the repository created
// as bare rows before the ledger ever saw them.
func (s *Service) normalize(p *models.UserProgress) {
	if p.LevelName != "" {
		return
	}
	fresh := s.ledger.NewSnapshot(p.UserID)
	p.Level = fresh.Level
	p.LevelName = fresh.LevelName
	p.PointsToNextLevel = fresh.PointsToNextLevel
}

func (s *Service) historyEntry(userID string, points int64, action, description, refType, refID string) *models.PointsHistoryEntry {
	return &models.PointsHistoryEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Points:      points,
		Action:      action,
		Description: description,
		RefType:     refType,
		RefID:       refID,
		CreatedAt:   time.Now().UTC(),
	}
}
