package models

import (
	"time"
)

// DailyListingStat is the per-listing-per-day aggregate row. All counters are
// monotonically non-decreasing within a day except FavoritesNet.
type DailyListingStat struct {
	ListingID string    `json:"listing_id"`
	Date      time.Time `json:"date"` // calendar date, midnight UTC

	// View counters
	Views          int64 `json:"views"`
	UniqueViews    int64 `json:"unique_views"`
	ReturningViews int64 `json:"returning_views"`
	BounceCount    int64 `json:"bounce_count"`

	// Per-source counters
	BySource map[TrafficSource]int64 `json:"by_source,omitempty"`

	// Per-device counters
	ByDevice map[DeviceClass]int64 `json:"by_device,omitempty"`

	// Engagement counters
	GalleryOpens       int64 `json:"gallery_opens"`
	ImageViews         int64 `json:"image_views"`
	ImageZooms         int64 `json:"image_zooms"`
	ImageDownloads     int64 `json:"image_downloads"`
	VideoPlays         int64 `json:"video_plays"`
	VideoProgress25    int64 `json:"video_progress_25"`
	VideoProgress50    int64 `json:"video_progress_50"`
	VideoProgress75    int64 `json:"video_progress_75"`
	VideoProgress100   int64 `json:"video_progress_100"`
	DescriptionExpands int64 `json:"description_expands"`
	MapOpens           int64 `json:"map_opens"`
	MapDirections      int64 `json:"map_directions"`
	SellerProfileClicks int64 `json:"seller_profile_clicks"`
	SimilarItemsClicks  int64 `json:"similar_items_clicks"`

	// Contact channel counters
	PhoneReveals   int64 `json:"phone_reveals"`
	PhoneClicks    int64 `json:"phone_clicks"`
	WhatsAppClicks int64 `json:"whatsapp_clicks"`
	ViberClicks    int64 `json:"viber_clicks"`
	TelegramClicks int64 `json:"telegram_clicks"`
	EmailClicks    int64 `json:"email_clicks"`
	MessagesSent   int64 `json:"messages_sent"`

	// Offers
	OffersReceived  int64   `json:"offers_received"`
	OffersAvgAmount float64 `json:"offers_avg_amount"`

	// Discovery
	Shares            int64 `json:"shares"`
	SearchImpressions int64 `json:"search_impressions"`

	// Favorites. Net may go negative when removals structurally exceed
	// recorded additions; added/removed themselves never decrease.
	FavoritesAdded   int64 `json:"favorites_added"`
	FavoritesRemoved int64 `json:"favorites_removed"`
	FavoritesNet     int64 `json:"favorites_net"`

	// Running average of session time on page for the day.
	AvgTimeOnPage float64 `json:"avg_time_on_page"`

	// Open-ended keyed breakdowns.
	GeoBreakdown    map[string]int64 `json:"geo_breakdown,omitempty"`    // "US", "US/New York"
	HourlyBreakdown map[string]int64 `json:"hourly_breakdown,omitempty"` // "00".."23"
}

// StatDelta is the increment set merged atomically into a daily row. Field
// names mirror DailyListingStat; only non-zero deltas are applied.
type StatDelta struct {
	Views          int64
	UniqueViews    int64
	ReturningViews int64
	BounceCount    int64

	Source TrafficSource // increments BySource[Source] by 1 when set
	Device DeviceClass   // increments ByDevice[Device] by 1 when set

	GalleryOpens        int64
	ImageViews          int64
	ImageZooms          int64
	ImageDownloads      int64
	VideoPlays          int64
	VideoProgress25     int64
	VideoProgress50     int64
	VideoProgress75     int64
	VideoProgress100    int64
	DescriptionExpands  int64
	MapOpens            int64
	MapDirections       int64
	SellerProfileClicks int64
	SimilarItemsClicks  int64

	PhoneReveals   int64
	PhoneClicks    int64
	WhatsAppClicks int64
	ViberClicks    int64
	TelegramClicks int64
	EmailClicks    int64
	MessagesSent   int64

	Shares            int64
	SearchImpressions int64

	FavoritesAdded   int64
	FavoritesRemoved int64
	FavoritesNet     int64

	GeoKeys  []string // breakdown keys to increment by 1
	HourKeys []string
}

// IsZero reports whether the delta would change nothing.
func (d *StatDelta) IsZero() bool {
	return d.Views == 0 && d.UniqueViews == 0 &&
		d.ReturningViews == 0 && d.BounceCount == 0 && d.Source == "" &&
		d.Device == "" && d.GalleryOpens == 0 && d.ImageViews == 0 &&
		d.ImageZooms == 0 && d.ImageDownloads == 0 && d.VideoPlays == 0 &&
		d.VideoProgress25 == 0 && d.VideoProgress50 == 0 &&
		d.VideoProgress75 == 0 && d.VideoProgress100 == 0 &&
		d.DescriptionExpands == 0 && d.MapOpens == 0 && d.MapDirections == 0 &&
		d.SellerProfileClicks == 0 && d.SimilarItemsClicks == 0 &&
		d.PhoneReveals == 0 && d.PhoneClicks == 0 && d.WhatsAppClicks == 0 &&
		d.ViberClicks == 0 && d.TelegramClicks == 0 && d.EmailClicks == 0 &&
		d.MessagesSent == 0 && d.Shares == 0 && d.SearchImpressions == 0 &&
		d.FavoritesAdded == 0 && d.FavoritesRemoved == 0 &&
		d.FavoritesNet == 0 && len(d.GeoKeys) == 0 && len(d.HourKeys) == 0
}

// ListingRollup mirrors lifetime aggregates on the listing entity for O(1)
// reads. Eventual consistency with the daily table is tolerated.
type ListingRollup struct {
	ListingID           string  `json:"listing_id"`
	Clicks              int64   `json:"clicks"` // lifetime view count
	TotalUniqueVisitors int64   `json:"total_unique_visitors"`
	TotalGalleryViews   int64   `json:"total_gallery_views"`
	TotalVideoPlays     int64   `json:"total_video_plays"`
	AvgTimeOnPage       float64 `json:"avg_time_on_page"`
}

// Listing is the minimal view of a catalog item the analytics core needs.
type Listing struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
}

// StatSummary is the read-side aggregation of daily rows over a date range.
type StatSummary struct {
	ListingID       string           `json:"listing_id"`
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	Views           int64            `json:"views"`
	UniqueViews     int64            `json:"unique_views"`
	ReturningViews  int64            `json:"returning_views"`
	BounceCount     int64            `json:"bounce_count"`
	Shares          int64            `json:"shares"`
	FavoritesNet    int64            `json:"favorites_net"`
	AvgTimeOnPage   float64          `json:"avg_time_on_page"`
	GeoBreakdown    map[string]int64 `json:"geo_breakdown,omitempty"`
	HourlyBreakdown map[string]int64 `json:"hourly_breakdown,omitempty"`
	Days            int              `json:"days"`
}

// CategoryComparison positions a listing against its category cohort.
type CategoryComparison struct {
	ListingID    string  `json:"listing_id"`
	CategoryID   string  `json:"category_id"`
	WindowDays   int     `json:"window_days"`
	Views        int64   `json:"views"`
	AverageViews float64 `json:"average_views"`
	PeerCount    int     `json:"peer_count"`
	Percentile   int     `json:"percentile"`
	PercentDiff  int     `json:"percent_diff"`
	Label        string  `json:"label"`
}

// Trend describes period-over-period movement of a metric.
type Trend struct {
	Direction string `json:"direction"` // "up", "down", "neutral"
	Percent   int    `json:"percent"`
}
