package models

import (
	"time"
)

// EventKind identifies a type of listing interaction.
type EventKind string

const (
	EventView             EventKind = "view"
	EventGalleryOpen      EventKind = "gallery_open"
	EventImageView        EventKind = "image_view"
	EventImageZoom        EventKind = "image_zoom"
	EventImageDownload    EventKind = "image_download"
	EventVideoPlay        EventKind = "video_play"
	EventVideoProgress    EventKind = "video_progress"
	EventDescExpand       EventKind = "description_expand"
	EventMapOpen          EventKind = "map_open"
	EventMapDirections    EventKind = "map_directions"
	EventSellerProfile    EventKind = "seller_profile_click"
	EventSimilarItems     EventKind = "similar_items_click"
	EventPhoneReveal      EventKind = "phone_reveal"
	EventPhoneClick       EventKind = "phone_click"
	EventWhatsAppClick    EventKind = "whatsapp_click"
	EventViberClick       EventKind = "viber_click"
	EventTelegramClick    EventKind = "telegram_click"
	EventEmailClick       EventKind = "email_click"
	EventMessageSent      EventKind = "message_sent"
	EventOfferMade        EventKind = "offer_made"
	EventShare            EventKind = "share"
	EventSearchImpression EventKind = "search_impression"
	EventFavoriteAdd      EventKind = "favorite_add"
	EventFavoriteRemove   EventKind = "favorite_remove"
)

// TrafficSource identifies how a visitor arrived at a listing.
type TrafficSource string

const (
	SourceDirect           TrafficSource = "direct"
	SourceInternalSearch   TrafficSource = "internal_search"
	SourceCategoryBrowse   TrafficSource = "category_browse"
	SourceFeaturedSection  TrafficSource = "featured_section"
	SourceSimilarItems     TrafficSource = "similar_items"
	SourceSellerProfile    TrafficSource = "seller_profile"
	SourceFavorites        TrafficSource = "favorites"
	SourceNotifications    TrafficSource = "notifications"
	SourceChat             TrafficSource = "chat"
	SourceEmailCampaign    TrafficSource = "email_campaign"
	SourcePushNotification TrafficSource = "push_notification"
	SourceGoogleOrganic    TrafficSource = "google_organic"
	SourceGoogleAds        TrafficSource = "google_ads"
	SourceFacebook         TrafficSource = "facebook"
	SourceInstagram        TrafficSource = "instagram"
	SourceViber            TrafficSource = "viber"
	SourceWhatsApp         TrafficSource = "whatsapp"
	SourceTwitter          TrafficSource = "twitter"
	SourceTikTok           TrafficSource = "tiktok"
	SourceYouTube          TrafficSource = "youtube"
	SourceLinkedIn         TrafficSource = "linkedin"
	SourceOtherExternal    TrafficSource = "other_external"
)

// DeviceClass identifies the class of device that generated an event.
type DeviceClass string

const (
	DeviceMobile     DeviceClass = "mobile"
	DeviceDesktop    DeviceClass = "desktop"
	DeviceTablet     DeviceClass = "tablet"
	DeviceAppIOS     DeviceClass = "app_ios"
	DeviceAppAndroid DeviceClass = "app_android"
)

// RawContext carries the request-level hints attached to an interaction
// event before classification.
type RawContext struct {
	VisitorID   string `json:"visitor_id,omitempty"` // explicit id when known
	UserID      string `json:"user_id,omitempty"`    // authenticated user, if any
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	Source      string `json:"source,omitempty"` // explicit source override
	IsApp       bool   `json:"is_app,omitempty"`
	AppPlatform string `json:"app_platform,omitempty"` // "ios" or "android"

	// Geo hints supplied by the caller; resolved from IP when absent.
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// InteractionEvent is the ephemeral input to the aggregation engine. It is
// consumed and discarded; the engine never persists it verbatim.
type InteractionEvent struct {
	ListingID string     `json:"listing_id"`
	Kind      EventKind  `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	Context   RawContext `json:"context"`

	// Numeric payload: seconds for time events, percent for video progress,
	// amount for offers.
	Seconds int     `json:"seconds,omitempty"`
	Percent int     `json:"percent,omitempty"`
	Amount  float64 `json:"amount,omitempty"`

	// Share channel or similar free-form qualifier.
	Channel string `json:"channel,omitempty"`
}
