package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
)

// In-memory repository implementations, used by tests and when the
// process boots without PostgreSQL.

// =============================================
// STATS
// =============================================

// MemoryStatRepo implements StatRepo in process memory.
type MemoryStatRepo struct {
	mu   sync.Mutex
	rows map[string]*models.DailyListingStat // listingID + "|" + date
}

func NewMemoryStatRepo() *MemoryStatRepo {
	return &MemoryStatRepo{rows: make(map[string]*models.DailyListingStat)}
}

func statKey(listingID string, day time.Time) string {
	return listingID + "|" + day.UTC().Format("2006-01-02")
}

func (r *MemoryStatRepo) row(listingID string, day time.Time) *models.DailyListingStat {
	key := statKey(listingID, day)
	st, ok := r.rows[key]
	if !ok {
		st = &models.DailyListingStat{ListingID: listingID, Date: dateOnly(day)}
		r.rows[key] = st
	}
	return st
}

func (r *MemoryStatRepo) ApplyDelta(ctx context.Context, listingID string, day time.Time, delta *models.StatDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.row(listingID, day)
	st.Views += delta.Views
	st.UniqueViews += delta.UniqueViews
	st.ReturningViews += delta.ReturningViews
	st.BounceCount += delta.BounceCount
	st.GalleryOpens += delta.GalleryOpens
	st.ImageViews += delta.ImageViews
	st.ImageZooms += delta.ImageZooms
	st.ImageDownloads += delta.ImageDownloads
	st.VideoPlays += delta.VideoPlays
	st.VideoProgress25 += delta.VideoProgress25
	st.VideoProgress50 += delta.VideoProgress50
	st.VideoProgress75 += delta.VideoProgress75
	st.VideoProgress100 += delta.VideoProgress100
	st.DescriptionExpands += delta.DescriptionExpands
	st.MapOpens += delta.MapOpens
	st.MapDirections += delta.MapDirections
	st.SellerProfileClicks += delta.SellerProfileClicks
	st.SimilarItemsClicks += delta.SimilarItemsClicks
	st.PhoneReveals += delta.PhoneReveals
	st.PhoneClicks += delta.PhoneClicks
	st.WhatsAppClicks += delta.WhatsAppClicks
	st.ViberClicks += delta.ViberClicks
	st.TelegramClicks += delta.TelegramClicks
	st.EmailClicks += delta.EmailClicks
	st.MessagesSent += delta.MessagesSent
	st.Shares += delta.Shares
	st.SearchImpressions += delta.SearchImpressions
	st.FavoritesAdded += delta.FavoritesAdded
	st.FavoritesRemoved += delta.FavoritesRemoved
	st.FavoritesNet += delta.FavoritesNet

	if delta.Source != "" {
		if st.BySource == nil {
			st.BySource = make(map[models.TrafficSource]int64)
		}
		st.BySource[delta.Source]++
	}
	if delta.Device != "" {
		if st.ByDevice == nil {
			st.ByDevice = make(map[models.DeviceClass]int64)
		}
		st.ByDevice[delta.Device]++
	}
	for _, k := range delta.GeoKeys {
		if st.GeoBreakdown == nil {
			st.GeoBreakdown = make(map[string]int64)
		}
		st.GeoBreakdown[k]++
	}
	for _, k := range delta.HourKeys {
		if st.HourlyBreakdown == nil {
			st.HourlyBreakdown = make(map[string]int64)
		}
		st.HourlyBreakdown[k]++
	}
	return nil
}

func (r *MemoryStatRepo) UpdateAvgTime(ctx context.Context, listingID string, day time.Time, seconds float64, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if count < 1 {
		count = 1
	}
	st := r.row(listingID, day)
	st.AvgTimeOnPage += (seconds - st.AvgTimeOnPage) / float64(count)
	return nil
}

func (r *MemoryStatRepo) RecordOffer(ctx context.Context, listingID string, day time.Time, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.row(listingID, day)
	st.OffersReceived++
	st.OffersAvgAmount += (amount - st.OffersAvgAmount) / float64(st.OffersReceived)
	return nil
}

func (r *MemoryStatRepo) Get(ctx context.Context, listingID string, day time.Time) (*models.DailyListingStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rows[statKey(listingID, day)]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *MemoryStatRepo) Range(ctx context.Context, listingID string, from, to time.Time) ([]*models.DailyListingStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats []*models.DailyListingStat
	for _, st := range r.rows {
		if st.ListingID != listingID {
			continue
		}
		if st.Date.Before(dateOnly(from)) || st.Date.After(dateOnly(to)) {
			continue
		}
		cp := *st
		stats = append(stats, &cp)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date.Before(stats[j].Date) })
	return stats, nil
}

func (r *MemoryStatRepo) SumViews(ctx context.Context, listingID string, from, to time.Time) (int64, bool, error) {
	stats, err := r.Range(ctx, listingID, from, to)
	if err != nil {
		return 0, false, err
	}
	var views int64
	for _, st := range stats {
		views += st.Views
	}
	return views, len(stats) > 0, nil
}

// =============================================
// LISTINGS
// =============================================

// MemoryListingRepo implements ListingRepo and CohortRepo in memory.
type MemoryListingRepo struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
	rollups  map[string]*models.ListingRollup
}

func NewMemoryListingRepo() *MemoryListingRepo {
	return &MemoryListingRepo{
		listings: make(map[string]*models.Listing),
		rollups:  make(map[string]*models.ListingRollup),
	}
}

// Put seeds a listing; tests and the degraded boot path use it.
func (r *MemoryListingRepo) Put(l *models.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = l
}

func (r *MemoryListingRepo) Get(ctx context.Context, id string) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *MemoryListingRepo) rollup(id string) *models.ListingRollup {
	ru, ok := r.rollups[id]
	if !ok {
		ru = &models.ListingRollup{ListingID: id}
		r.rollups[id] = ru
	}
	return ru
}

func (r *MemoryListingRepo) GetRollup(ctx context.Context, id string) (*models.ListingRollup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ru, ok := r.rollups[id]
	if !ok {
		return nil, nil
	}
	cp := *ru
	return &cp, nil
}

func (r *MemoryListingRepo) IncrementRollup(ctx context.Context, id string, clicks, uniqueVisitors, galleryViews, videoPlays int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ru := r.rollup(id)
	ru.Clicks += clicks
	ru.TotalUniqueVisitors += uniqueVisitors
	ru.TotalGalleryViews += galleryViews
	ru.TotalVideoPlays += videoPlays
	return nil
}

func (r *MemoryListingRepo) UpdateAvgTime(ctx context.Context, id string, seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ru := r.rollup(id)
	count := ru.Clicks
	if count < 1 {
		count = 1
	}
	ru.AvgTimeOnPage += (seconds - ru.AvgTimeOnPage) / float64(count)
	return nil
}

func (r *MemoryListingRepo) Peers(ctx context.Context, categoryID, excludeListingID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, l := range r.listings {
		if l.CategoryID == categoryID && l.ID != excludeListingID {
			ids = append(ids, l.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================
// BADGES
// =============================================

// MemoryBadgeRepo implements BadgeRepo in memory.
type MemoryBadgeRepo struct {
	mu     sync.Mutex
	badges map[string]*models.Badge // by id
	awards map[string]*models.UserBadge
}

func NewMemoryBadgeRepo() *MemoryBadgeRepo {
	return &MemoryBadgeRepo{
		badges: make(map[string]*models.Badge),
		awards: make(map[string]*models.UserBadge),
	}
}

func (r *MemoryBadgeRepo) Put(b *models.Badge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badges[b.ID] = b
}

func (r *MemoryBadgeRepo) ListActive(ctx context.Context) ([]*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var badges []*models.Badge
	for _, b := range r.badges {
		if b.IsActive {
			cp := *b
			badges = append(badges, &cp)
		}
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Slug < badges[j].Slug })
	return badges, nil
}

func (r *MemoryBadgeRepo) GetBySlug(ctx context.Context, slug string) (*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.badges {
		if b.Slug == slug {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryBadgeRepo) HasAward(ctx context.Context, userID, badgeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.awards[userID+"|"+badgeID]
	return ok, nil
}

func (r *MemoryBadgeRepo) CreateAward(ctx context.Context, award *models.UserBadge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := award.UserID + "|" + award.BadgeID
	if _, ok := r.awards[key]; ok {
		return false, nil
	}
	cp := *award
	r.awards[key] = &cp
	return true, nil
}

// =============================================
// PROGRESSION
// =============================================

// MemoryProgressRepo implements ProgressRepo in memory.
type MemoryProgressRepo struct {
	mu       sync.Mutex
	progress map[string]*models.UserProgress
	history  map[string][]*models.PointsHistoryEntry
}

func NewMemoryProgressRepo() *MemoryProgressRepo {
	return &MemoryProgressRepo{
		progress: make(map[string]*models.UserProgress),
		history:  make(map[string][]*models.PointsHistoryEntry),
	}
}

func (r *MemoryProgressRepo) Get(ctx context.Context, userID string) (*models.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProgressRepo) Update(ctx context.Context, userID string, fn func(p *models.UserProgress) (*models.PointsHistoryEntry, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.progress[userID]
	if !ok {
		p = &models.UserProgress{UserID: userID, Level: 1}
		r.progress[userID] = p
	}

	entry, err := fn(p)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	if entry != nil {
		cp := *entry
		r.history[userID] = append(r.history[userID], &cp)
	}
	return nil
}

func (r *MemoryProgressRepo) History(ctx context.Context, userID string, limit int) ([]*models.PointsHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.history[userID]
	out := make([]*models.PointsHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryProgressRepo) Leaderboard(ctx context.Context, limit int) ([]*models.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*models.UserProgress, 0, len(r.progress))
	for _, p := range r.progress {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalPoints != all[j].TotalPoints {
			return all[i].TotalPoints > all[j].TotalPoints
		}
		return all[i].UserID < all[j].UserID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
