// Package session maintains visitor identity and visit windows against
// listings. A session is one activity window of a visitor on a listing,
// bounded by a recency gap; novelty classification (unique / returning /
// repeat) is the dedupe primitive the aggregation engine counts with.
package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/marketpulse/listing-insights/internal/classify"
	"github.com/marketpulse/listing-insights/internal/models"
	"go.uber.org/zap"
)

// Store persists visitor-seen state and the most recent session per
// visitor+listing.
type Store interface {
	// Classify atomically records the visitor as seen for the listing on
	// now's calendar day and returns the novelty of this event.
	Classify(ctx context.Context, listingID, visitorID string, now time.Time) (models.Novelty, error)

	// Latest returns the most recent session for the visitor+listing, or
	// nil when none is stored.
	Latest(ctx context.Context, listingID, visitorID string) (*models.VisitorSession, error)

	// Save stores the session as the most recent one for its visitor+listing.
	Save(ctx context.Context, sess *models.VisitorSession) error
}

// Tracker implements the visitor session policy: one window per recency
// gap, reused for every downstream engagement-logging call.
type Tracker struct {
	store  Store
	window time.Duration
	logger *zap.Logger
}

// NewTracker constructs a Tracker. window is the session recency gap;
// zero falls back to 30 minutes.
func NewTracker(store Store, window time.Duration, logger *zap.Logger) *Tracker {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Tracker{store: store, window: window, logger: logger}
}

// Identify resolves a stable visitor id for a request. An explicit visitor
// id wins, then the authenticated user id, then a hash derived from client
// IP and user agent. Collisions across users sharing IP+agent are an
// accepted approximation.
func (t *Tracker) Identify(rc models.RawContext) string {
	if rc.VisitorID != "" {
		return rc.VisitorID
	}
	if rc.UserID != "" {
		return rc.UserID
	}
	h := fnv.New64a()
	h.Write([]byte(rc.IP))
	h.Write([]byte{0})
	h.Write([]byte(rc.UserAgent))
	return fmt.Sprintf("v:%016x", h.Sum64())
}

// ClassifyNovelty records this visit and reports whether the visitor is
// unique, returning or a same-day repeat for the listing.
func (t *Tracker) ClassifyNovelty(ctx context.Context, listingID, visitorID string, now time.Time) (models.Novelty, error) {
	return t.store.Classify(ctx, listingID, visitorID, now)
}

// StartOrContinue reuses the most recent session started within the
// recency window, appending a view action to its log; otherwise it opens a
// new session classified from the request context.
func (t *Tracker) StartOrContinue(ctx context.Context, listingID, visitorID string, rc models.RawContext, now time.Time) (*models.VisitorSession, error) {
	sess, err := t.store.Latest(ctx, listingID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess != nil && sess.EndedAt == nil && now.Sub(sess.StartedAt) <= t.window {
		sess.Actions = append(sess.Actions, models.SessionAction{
			Kind:      models.EventView,
			Timestamp: now,
		})
		if err := t.store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
		return sess, nil
	}

	sess = &models.VisitorSession{
		ID:        uuid.New().String(),
		ListingID: listingID,
		VisitorID: visitorID,
		StartedAt: now,
		Source:    classify.TrafficSource(rc),
		Device:    classify.DeviceClass(rc),
		Actions: []models.SessionAction{
			{Kind: models.EventView, Timestamp: now},
		},
	}
	if err := t.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	t.logger.Debug("session opened",
		zap.String("listing_id", listingID),
		zap.String("visitor_id", visitorID),
		zap.String("source", string(sess.Source)),
	)
	return sess, nil
}

// AppendAction logs an engagement action against the active session. It is
// a silent no-op when no open session exists within the recency window;
// non-view events never create sessions.
func (t *Tracker) AppendAction(ctx context.Context, listingID, visitorID string, action models.SessionAction) error {
	sess, err := t.store.Latest(ctx, listingID, visitorID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil || sess.EndedAt != nil || action.Timestamp.Sub(sess.StartedAt) > t.window {
		return nil
	}
	sess.Actions = append(sess.Actions, action)
	return t.store.Save(ctx, sess)
}

// Close ends the visitor's current session, recording its duration. The
// returned session is nil when no open session exists.
func (t *Tracker) Close(ctx context.Context, listingID, visitorID string, seconds int, now time.Time) (*models.VisitorSession, error) {
	sess, err := t.store.Latest(ctx, listingID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil || sess.EndedAt != nil {
		return nil, nil
	}
	ended := now
	sess.EndedAt = &ended
	sess.DurationSeconds = seconds
	if err := t.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	return sess, nil
}
