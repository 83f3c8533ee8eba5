// Package stats is the aggregation engine: it enriches interaction events
// with classification and novelty, then folds them into per-listing-per-day
// counters, keyed breakdowns, running averages and lifetime rollups.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/marketpulse/listing-insights/internal/classify"
	"github.com/marketpulse/listing-insights/internal/geo"
	"github.com/marketpulse/listing-insights/internal/metrics"
	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/session"
	"github.com/marketpulse/listing-insights/internal/storage"
	"go.uber.org/zap"
)

// Service records interaction events against the daily statistic rows and
// listing rollups. It never stores raw events.
type Service struct {
	stats    storage.StatRepo
	listings storage.ListingRepo
	tracker  *session.Tracker
	geo      geo.Provider // optional
	metrics  *metrics.Metrics
	logger   *zap.Logger

	bounceThreshold int // seconds
}

// NewService constructs the aggregation engine. geoProvider and m may be
// nil; bounceThreshold <= 0 falls back to 10 seconds.
func NewService(
	stats storage.StatRepo,
	listings storage.ListingRepo,
	tracker *session.Tracker,
	geoProvider geo.Provider,
	bounceThreshold int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if bounceThreshold <= 0 {
		bounceThreshold = 10
	}
	return &Service{
		stats:           stats,
		listings:        listings,
		tracker:         tracker,
		geo:             geoProvider,
		metrics:         m,
		logger:          logger,
		bounceThreshold: bounceThreshold,
	}
}

// RecordView records one listing view: novelty classification, daily
// counters, source/device/geo/hour breakdowns, lifetime rollups and the
// visitor session.
func (s *Service) RecordView(ctx context.Context, listingID string, rc models.RawContext, now time.Time) error {
	start := time.Now()
	visitorID := s.tracker.Identify(rc)

	novelty, err := s.tracker.ClassifyNovelty(ctx, listingID, visitorID, now)
	if err != nil {
		return fmt.Errorf("failed to classify visitor: %w", err)
	}

	source := classify.TrafficSource(rc)
	device := classify.DeviceClass(rc)

	delta := &models.StatDelta{
		Views:    1,
		Source:   source,
		Device:   device,
		GeoKeys:  s.geoKeys(rc),
		HourKeys: []string{fmt.Sprintf("%02d", now.UTC().Hour())},
	}

	var uniqueInc int64
	switch novelty {
	case models.NoveltyUnique:
		delta.UniqueViews = 1
		uniqueInc = 1
	case models.NoveltyReturning:
		delta.ReturningViews = 1
	}

	if err := s.stats.ApplyDelta(ctx, listingID, now, delta); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}

	// Lifetime clicks always advance; unique visitors only on first sight.
	if err := s.listings.IncrementRollup(ctx, listingID, 1, uniqueInc, 0, 0); err != nil {
		s.logger.Warn("failed to update listing rollup",
			zap.String("listing_id", listingID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordStoreError("listing_rollup")
		}
	}

	if _, err := s.tracker.StartOrContinue(ctx, listingID, visitorID, rc, now); err != nil {
		// Session loss degrades engagement logging, never view counting.
		s.logger.Warn("failed to start session",
			zap.String("listing_id", listingID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordView(string(source), string(device), string(novelty))
		s.metrics.RecordEvent(string(models.EventView), time.Since(start))
	}
	return nil
}

// RecordTimeOnPage closes the visitor's open session with the measured
// duration, folds the sample into the daily and lifetime running averages
// and counts a bounce for short visits.
func (s *Service) RecordTimeOnPage(ctx context.Context, listingID string, rc models.RawContext, seconds int, now time.Time) error {
	visitorID := s.tracker.Identify(rc)

	if _, err := s.tracker.Close(ctx, listingID, visitorID, seconds, now); err != nil {
		s.logger.Warn("failed to close session",
			zap.String("listing_id", listingID), zap.Error(err))
	}

	// The lifetime view count is the sample count for the running mean,
	// clamped to one to avoid division by zero.
	var count int64 = 1
	if ru, err := s.listings.GetRollup(ctx, listingID); err == nil && ru != nil && ru.Clicks > 1 {
		count = ru.Clicks
	}

	if err := s.stats.UpdateAvgTime(ctx, listingID, now, float64(seconds), count); err != nil {
		return fmt.Errorf("failed to update time on page: %w", err)
	}
	if err := s.listings.UpdateAvgTime(ctx, listingID, float64(seconds)); err != nil {
		s.logger.Warn("failed to update listing avg time",
			zap.String("listing_id", listingID), zap.Error(err))
	}

	if seconds < s.bounceThreshold {
		if err := s.stats.ApplyDelta(ctx, listingID, now, &models.StatDelta{BounceCount: 1}); err != nil {
			return fmt.Errorf("failed to record bounce: %w", err)
		}
		if s.metrics != nil {
			s.metrics.Bounces.Inc()
		}
	}
	return nil
}

// RecordEngagement records a non-view interaction: the per-kind daily
// counters, any lifetime rollup, and an action appended to the active
// session when one exists. Unknown kinds increment nothing and are not an
// error.
func (s *Service) RecordEngagement(ctx context.Context, ev models.InteractionEvent) error {
	start := time.Now()
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if ev.Kind == models.EventOfferMade {
		if err := s.stats.RecordOffer(ctx, ev.ListingID, now, ev.Amount); err != nil {
			return fmt.Errorf("failed to record offer: %w", err)
		}
	} else {
		delta, galleryInc, videoInc := deltaForKind(ev)
		if !delta.IsZero() {
			if err := s.stats.ApplyDelta(ctx, ev.ListingID, now, delta); err != nil {
				return fmt.Errorf("failed to record %s: %w", ev.Kind, err)
			}
		}
		if galleryInc > 0 || videoInc > 0 {
			if err := s.listings.IncrementRollup(ctx, ev.ListingID, 0, 0, galleryInc, videoInc); err != nil {
				s.logger.Warn("failed to update listing rollup",
					zap.String("listing_id", ev.ListingID), zap.Error(err))
			}
		}
	}

	visitorID := s.tracker.Identify(ev.Context)
	action := models.SessionAction{Kind: ev.Kind, Timestamp: now, Detail: ev.Channel}
	if err := s.tracker.AppendAction(ctx, ev.ListingID, visitorID, action); err != nil {
		s.logger.Warn("failed to log session action",
			zap.String("listing_id", ev.ListingID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEvent(string(ev.Kind), time.Since(start))
	}
	return nil
}

// Summary sums the listing's day rows over [from, to] and merges the keyed
// breakdowns.
func (s *Service) Summary(ctx context.Context, listingID string, from, to time.Time) (*models.StatSummary, error) {
	rows, err := s.stats.Range(ctx, listingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}

	sum := &models.StatSummary{
		ListingID: listingID,
		From:      from,
		To:        to,
		Days:      len(rows),
	}
	var avgTotal float64
	for _, st := range rows {
		sum.Views += st.Views
		sum.UniqueViews += st.UniqueViews
		sum.ReturningViews += st.ReturningViews
		sum.BounceCount += st.BounceCount
		sum.Shares += st.Shares
		sum.FavoritesNet += st.FavoritesNet
		avgTotal += st.AvgTimeOnPage
		for k, v := range st.GeoBreakdown {
			if sum.GeoBreakdown == nil {
				sum.GeoBreakdown = make(map[string]int64)
			}
			sum.GeoBreakdown[k] += v
		}
		for k, v := range st.HourlyBreakdown {
			if sum.HourlyBreakdown == nil {
				sum.HourlyBreakdown = make(map[string]int64)
			}
			sum.HourlyBreakdown[k] += v
		}
	}
	if len(rows) > 0 {
		sum.AvgTimeOnPage = avgTotal / float64(len(rows))
	}
	return sum, nil
}

// geoKeys resolves breakdown keys for an event: explicit hints first, IP
// lookup second, none when neither resolves.
func (s *Service) geoKeys(rc models.RawContext) []string {
	country, city := rc.Country, rc.City
	if country == "" && s.geo != nil && rc.IP != "" {
		if info, err := s.geo.Lookup(rc.IP); err == nil && info != nil {
			country, city = info.Country, info.City
		}
	}
	if country == "" {
		return nil
	}
	keys := []string{country}
	if city != "" {
		keys = append(keys, country+"/"+city)
	}
	return keys
}

// deltaForKind maps an engagement event onto its daily counter columns and
// lifetime rollup increments. The mapping is total: kinds without a
// counter yield an empty delta.
func deltaForKind(ev models.InteractionEvent) (delta *models.StatDelta, galleryInc, videoInc int64) {
	delta = &models.StatDelta{}
	switch ev.Kind {
	case models.EventGalleryOpen:
		delta.GalleryOpens = 1
		galleryInc = 1
	case models.EventImageView:
		delta.ImageViews = 1
	case models.EventImageZoom:
		delta.ImageZooms = 1
	case models.EventImageDownload:
		delta.ImageDownloads = 1
	case models.EventVideoPlay:
		delta.VideoPlays = 1
		videoInc = 1
	case models.EventVideoProgress:
		switch {
		case ev.Percent >= 100:
			delta.VideoProgress100 = 1
		case ev.Percent >= 75:
			delta.VideoProgress75 = 1
		case ev.Percent >= 50:
			delta.VideoProgress50 = 1
		case ev.Percent >= 25:
			delta.VideoProgress25 = 1
		}
	case models.EventDescExpand:
		delta.DescriptionExpands = 1
	case models.EventMapOpen:
		delta.MapOpens = 1
	case models.EventMapDirections:
		delta.MapDirections = 1
	case models.EventSellerProfile:
		delta.SellerProfileClicks = 1
	case models.EventSimilarItems:
		delta.SimilarItemsClicks = 1
	case models.EventPhoneReveal:
		delta.PhoneReveals = 1
	case models.EventPhoneClick:
		delta.PhoneClicks = 1
	case models.EventWhatsAppClick:
		delta.WhatsAppClicks = 1
	case models.EventViberClick:
		delta.ViberClicks = 1
	case models.EventTelegramClick:
		delta.TelegramClicks = 1
	case models.EventEmailClick:
		delta.EmailClicks = 1
	case models.EventMessageSent:
		delta.MessagesSent = 1
	case models.EventShare:
		delta.Shares = 1
	case models.EventSearchImpression:
		delta.SearchImpressions = 1
	case models.EventFavoriteAdd:
		delta.FavoritesAdded = 1
		delta.FavoritesNet = 1
	case models.EventFavoriteRemove:
		delta.FavoritesRemoved = 1
		delta.FavoritesNet = -1
	}
	return delta, galleryInc, videoInc
}
