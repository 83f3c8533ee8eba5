package stats

import (
	"context"
	"testing"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/session"
	"github.com/marketpulse/listing-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc      *Service
	stats    *storage.MemoryStatRepo
	listings *storage.MemoryListingRepo
	tracker  *session.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	statRepo := storage.NewMemoryStatRepo()
	listingRepo := storage.NewMemoryListingRepo()
	tracker := session.NewTracker(session.NewMemoryStore(), 30*time.Minute, zap.NewNop())
	svc := NewService(statRepo, listingRepo, tracker, nil, 10, nil, zap.NewNop())
	return &fixture{svc: svc, stats: statRepo, listings: listingRepo, tracker: tracker}
}

func view(visitorID string) models.RawContext {
	return models.RawContext{VisitorID: visitorID, Country: "DE", City: "Berlin"}
}

func TestRecordViewFirstIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

	// Several views from the same visitor within one day: exactly one
	// unique, and it is the first.
	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), now.Add(time.Duration(i)*time.Minute)))
	}

	st, err := f.stats.Get(ctx, "l1", now)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(5), st.Views)
	assert.Equal(t, int64(1), st.UniqueViews)
	assert.Equal(t, int64(0), st.ReturningViews)

	ru, err := f.listings.GetRollup(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), ru.Clicks)
	assert.Equal(t, int64(1), ru.TotalUniqueVisitors)
}

func TestRecordViewReturningNextDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), day1))
	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), day2))

	st2, err := f.stats.Get(ctx, "l1", day2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st2.Views)
	assert.Equal(t, int64(0), st2.UniqueViews)
	assert.Equal(t, int64(1), st2.ReturningViews)

	// Lifetime uniques count the visitor once across days.
	ru, _ := f.listings.GetRollup(ctx, "l1")
	assert.Equal(t, int64(1), ru.TotalUniqueVisitors)
	assert.Equal(t, int64(2), ru.Clicks)
}

func TestRecordViewBreakdowns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)

	rc := models.RawContext{
		VisitorID: "v1",
		Referrer:  "https://www.google.com/search?q=sofa",
		UserAgent: "Mozilla/5.0 (iPhone) Mobile",
		Country:   "DE",
		City:      "Berlin",
	}
	require.NoError(t, f.svc.RecordView(ctx, "l1", rc, now))

	st, _ := f.stats.Get(ctx, "l1", now)
	assert.Equal(t, int64(1), st.BySource[models.SourceGoogleOrganic])
	assert.Equal(t, int64(1), st.ByDevice[models.DeviceMobile])
	assert.Equal(t, int64(1), st.GeoBreakdown["DE"])
	assert.Equal(t, int64(1), st.GeoBreakdown["DE/Berlin"])
	assert.Equal(t, int64(1), st.HourlyBreakdown["09"])
}

func TestRecordTimeOnPageIncrementalMean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	// Two views establish the sample count.
	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), now))
	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v2"), now))

	require.NoError(t, f.svc.RecordTimeOnPage(ctx, "l1", view("v1"), 60, now))

	st, _ := f.stats.Get(ctx, "l1", now)
	// avg = 0 + (60 - 0) / 2
	assert.InDelta(t, 30.0, st.AvgTimeOnPage, 0.001)
	assert.Equal(t, int64(0), st.BounceCount)
}

func TestRecordTimeOnPageBounce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), now))
	require.NoError(t, f.svc.RecordTimeOnPage(ctx, "l1", view("v1"), 3, now))

	st, _ := f.stats.Get(ctx, "l1", now)
	assert.Equal(t, int64(1), st.BounceCount)

	// The session carries the measured duration.
	sess, err := f.tracker.Close(ctx, "l1", "v1", 0, now)
	require.NoError(t, err)
	assert.Nil(t, sess) // already closed by RecordTimeOnPage
}

func TestRecordEngagementCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), now))

	events := []models.InteractionEvent{
		{ListingID: "l1", Kind: models.EventGalleryOpen, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventVideoPlay, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventVideoProgress, Percent: 80, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventPhoneReveal, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventFavoriteAdd, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventFavoriteRemove, Timestamp: now, Context: view("v1")},
		{ListingID: "l1", Kind: models.EventFavoriteRemove, Timestamp: now, Context: view("v1")},
	}
	for _, ev := range events {
		require.NoError(t, f.svc.RecordEngagement(ctx, ev))
	}

	st, _ := f.stats.Get(ctx, "l1", now)
	assert.Equal(t, int64(1), st.GalleryOpens)
	assert.Equal(t, int64(1), st.VideoPlays)
	assert.Equal(t, int64(1), st.VideoProgress75)
	assert.Equal(t, int64(0), st.VideoProgress100)
	assert.Equal(t, int64(1), st.PhoneReveals)
	assert.Equal(t, int64(1), st.FavoritesAdded)
	assert.Equal(t, int64(2), st.FavoritesRemoved)
	assert.Equal(t, int64(-1), st.FavoritesNet)

	ru, _ := f.listings.GetRollup(ctx, "l1")
	assert.Equal(t, int64(1), ru.TotalGalleryViews)
	assert.Equal(t, int64(1), ru.TotalVideoPlays)
}

func TestRecordEngagementOfferRunningAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	amounts := []float64{100, 200, 300}
	for _, a := range amounts {
		ev := models.InteractionEvent{
			ListingID: "l1", Kind: models.EventOfferMade,
			Amount: a, Timestamp: now, Context: view("v1"),
		}
		require.NoError(t, f.svc.RecordEngagement(ctx, ev))
	}

	st, _ := f.stats.Get(ctx, "l1", now)
	assert.Equal(t, int64(3), st.OffersReceived)
	assert.InDelta(t, 200.0, st.OffersAvgAmount, 0.001)
}

func TestRecordEngagementUnknownKindIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	ev := models.InteractionEvent{
		ListingID: "l1", Kind: models.EventKind("mystery"),
		Timestamp: now, Context: view("v1"),
	}
	require.NoError(t, f.svc.RecordEngagement(ctx, ev))

	st, err := f.stats.Get(ctx, "l1", now)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSummaryMergesDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), day1))
	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v2"), day1))
	require.NoError(t, f.svc.RecordView(ctx, "l1", view("v1"), day2))

	sum, err := f.svc.Summary(ctx, "l1", day1, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Views)
	assert.Equal(t, int64(2), sum.UniqueViews)
	assert.Equal(t, int64(1), sum.ReturningViews)
	assert.Equal(t, 2, sum.Days)
	assert.Equal(t, int64(3), sum.GeoBreakdown["DE"])
}
