package session

import (
	"context"
	"testing"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTracker(window time.Duration) *Tracker {
	return NewTracker(NewMemoryStore(), window, zap.NewNop())
}

func TestIdentifyPrecedence(t *testing.T) {
	tr := newTestTracker(0)

	assert.Equal(t, "vis-1", tr.Identify(models.RawContext{VisitorID: "vis-1", UserID: "user-1"}))
	assert.Equal(t, "user-1", tr.Identify(models.RawContext{UserID: "user-1", IP: "1.2.3.4"}))

	derived := tr.Identify(models.RawContext{IP: "1.2.3.4", UserAgent: "Mozilla/5.0"})
	assert.Regexp(t, `^v:[0-9a-f]{16}$`, derived)
	// Stable for identical inputs, different for different inputs.
	assert.Equal(t, derived, tr.Identify(models.RawContext{IP: "1.2.3.4", UserAgent: "Mozilla/5.0"}))
	assert.NotEqual(t, derived, tr.Identify(models.RawContext{IP: "1.2.3.5", UserAgent: "Mozilla/5.0"}))
}

func TestClassifyNovelty(t *testing.T) {
	tr := newTestTracker(0)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	n, err := tr.ClassifyNovelty(ctx, "l1", "v1", day1)
	require.NoError(t, err)
	assert.Equal(t, models.NoveltyUnique, n)

	// Same day again is a repeat.
	n, err = tr.ClassifyNovelty(ctx, "l1", "v1", day1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.NoveltyRepeat, n)

	// Next day the visitor is returning, then repeat again.
	day2 := day1.AddDate(0, 0, 1)
	n, err = tr.ClassifyNovelty(ctx, "l1", "v1", day2)
	require.NoError(t, err)
	assert.Equal(t, models.NoveltyReturning, n)

	n, err = tr.ClassifyNovelty(ctx, "l1", "v1", day2.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.NoveltyRepeat, n)

	// Another listing is independent.
	n, err = tr.ClassifyNovelty(ctx, "l2", "v1", day2)
	require.NoError(t, err)
	assert.Equal(t, models.NoveltyUnique, n)
}

func TestStartOrContinueReusesWithinWindow(t *testing.T) {
	tr := newTestTracker(30 * time.Minute)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rc := models.RawContext{Referrer: "https://www.google.com/search"}

	first, err := tr.StartOrContinue(ctx, "l1", "v1", rc, start)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGoogleOrganic, first.Source)
	assert.Len(t, first.Actions, 1)

	second, err := tr.StartOrContinue(ctx, "l1", "v1", rc, start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Actions, 2)

	// Past the window a fresh session opens.
	third, err := tr.StartOrContinue(ctx, "l1", "v1", rc, start.Add(31*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Len(t, third.Actions, 1)
}

func TestAppendActionRequiresOpenSession(t *testing.T) {
	tr := newTestTracker(30 * time.Minute)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// No session yet: silent no-op, never creates one.
	err := tr.AppendAction(ctx, "l1", "v1", models.SessionAction{
		Kind: models.EventGalleryOpen, Timestamp: start,
	})
	require.NoError(t, err)
	sess, err := tr.store.Latest(ctx, "l1", "v1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = tr.StartOrContinue(ctx, "l1", "v1", models.RawContext{}, start)
	require.NoError(t, err)

	err = tr.AppendAction(ctx, "l1", "v1", models.SessionAction{
		Kind: models.EventGalleryOpen, Timestamp: start.Add(5 * time.Minute),
	})
	require.NoError(t, err)

	sess, err = tr.store.Latest(ctx, "l1", "v1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Len(t, sess.Actions, 2)
	assert.Equal(t, models.EventGalleryOpen, sess.Actions[1].Kind)

	// Outside the window the action is dropped.
	err = tr.AppendAction(ctx, "l1", "v1", models.SessionAction{
		Kind: models.EventShare, Timestamp: start.Add(time.Hour),
	})
	require.NoError(t, err)
	sess, _ = tr.store.Latest(ctx, "l1", "v1")
	assert.Len(t, sess.Actions, 2)
}

func TestClose(t *testing.T) {
	tr := newTestTracker(30 * time.Minute)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Closing with no session is a nil no-op.
	sess, err := tr.Close(ctx, "l1", "v1", 42, start)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = tr.StartOrContinue(ctx, "l1", "v1", models.RawContext{}, start)
	require.NoError(t, err)

	sess, err = tr.Close(ctx, "l1", "v1", 42, start.Add(42*time.Second))
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 42, sess.DurationSeconds)
	require.NotNil(t, sess.EndedAt)

	// Already closed: no-op again.
	sess, err = tr.Close(ctx, "l1", "v1", 10, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, sess)
}
