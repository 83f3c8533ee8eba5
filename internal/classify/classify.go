// Package classify maps raw request context onto the canonical traffic
// source and device class enumerations. All functions are pure and
// deterministic; unresolvable inputs fall through to defined defaults,
// never errors.
package classify

import (
	"strings"

	"github.com/marketpulse/listing-insights/internal/models"
)

// explicit source overrides accepted from the caller.
var explicitSources = map[string]models.TrafficSource{
	"direct":            models.SourceDirect,
	"internal_search":   models.SourceInternalSearch,
	"search":            models.SourceInternalSearch,
	"category_browse":   models.SourceCategoryBrowse,
	"category":          models.SourceCategoryBrowse,
	"featured_section":  models.SourceFeaturedSection,
	"featured":          models.SourceFeaturedSection,
	"similar_items":     models.SourceSimilarItems,
	"similar":           models.SourceSimilarItems,
	"seller_profile":    models.SourceSellerProfile,
	"favorites":         models.SourceFavorites,
	"notifications":     models.SourceNotifications,
	"chat":              models.SourceChat,
	"email_campaign":    models.SourceEmailCampaign,
	"push_notification": models.SourcePushNotification,
	"push":              models.SourcePushNotification,
}

// referrer host fragments checked in order; first match wins. Google ads
// must be checked before organic since ad redirects share the google host.
var referrerSources = []struct {
	fragment string
	source   models.TrafficSource
}{
	{"googleadservices", models.SourceGoogleAds},
	{"doubleclick", models.SourceGoogleAds},
	{"googlesyndication", models.SourceGoogleAds},
	{"google", models.SourceGoogleOrganic},
	{"facebook", models.SourceFacebook},
	{"fb.com", models.SourceFacebook},
	{"fb.me", models.SourceFacebook},
	{"instagram", models.SourceInstagram},
	{"viber", models.SourceViber},
	{"whatsapp", models.SourceWhatsApp},
	{"wa.me", models.SourceWhatsApp},
	{"twitter", models.SourceTwitter},
	{"t.co/", models.SourceTwitter},
	{"x.com", models.SourceTwitter},
	{"tiktok", models.SourceTikTok},
	{"youtube", models.SourceYouTube},
	{"youtu.be", models.SourceYouTube},
	{"linkedin", models.SourceLinkedIn},
	{"lnkd.in", models.SourceLinkedIn},
}

// TrafficSource resolves the traffic source for a request context. An
// explicit source field takes precedence; otherwise the referrer is
// sniffed. An empty referrer is a direct visit and anything unrecognised
// classifies as other_external.
func TrafficSource(rc models.RawContext) models.TrafficSource {
	if rc.Source != "" {
		if src, ok := explicitSources[strings.ToLower(strings.TrimSpace(rc.Source))]; ok {
			return src
		}
	}

	ref := strings.ToLower(strings.TrimSpace(rc.Referrer))
	if ref == "" {
		return models.SourceDirect
	}
	for _, e := range referrerSources {
		if strings.Contains(ref, e.fragment) {
			return e.source
		}
	}
	return models.SourceOtherExternal
}

// DeviceClass resolves the device class for a request context. An explicit
// is_app + app_platform pair takes precedence over user-agent sniffing;
// sniffing falls back to desktop when inconclusive.
func DeviceClass(rc models.RawContext) models.DeviceClass {
	if rc.IsApp {
		switch strings.ToLower(rc.AppPlatform) {
		case "ios":
			return models.DeviceAppIOS
		case "android":
			return models.DeviceAppAndroid
		}
		// App flag without a recognised platform: fall through to the UA.
	}

	ua := strings.ToLower(rc.UserAgent)
	switch {
	case strings.Contains(ua, "ipad"):
		return models.DeviceTablet
	case strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		// Android without the Mobile token is a tablet UA.
		return models.DeviceTablet
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"), strings.Contains(ua, "ipod"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}
