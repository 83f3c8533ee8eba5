// Package notify carries reward signals out of the core. Delivery is fire
// and forget: implementations never return errors and must not block the
// awarding transaction.
package notify

import (
	"github.com/marketpulse/listing-insights/internal/models"
	"go.uber.org/zap"
)

// Notifier accepts reward signals for delivery to users.
type Notifier interface {
	BadgeEarned(userID string, badge *models.Badge)
	LevelUp(userID string, level int, levelName string)
}

// LogNotifier is the default Notifier; it only logs the signals. Real
// push/broadcast delivery lives outside this service.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) BadgeEarned(userID string, badge *models.Badge) {
	n.logger.Info("badge earned",
		zap.String("user_id", userID),
		zap.String("badge", badge.Slug),
		zap.Int64("points", badge.Points),
	)
}

func (n *LogNotifier) LevelUp(userID string, level int, levelName string) {
	n.logger.Info("level up",
		zap.String("user_id", userID),
		zap.Int("level", level),
		zap.String("level_name", levelName),
	)
}
