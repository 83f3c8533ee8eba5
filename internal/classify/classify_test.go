package classify

import (
	"testing"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTrafficSourceExplicitOverride(t *testing.T) {
	cases := []struct {
		source string
		want   models.TrafficSource
	}{
		{"direct", models.SourceDirect},
		{"internal_search", models.SourceInternalSearch},
		{"search", models.SourceInternalSearch},
		{"Favorites", models.SourceFavorites},
		{" push ", models.SourcePushNotification},
		{"chat", models.SourceChat},
	}
	for _, tc := range cases {
		rc := models.RawContext{Source: tc.source, Referrer: "https://www.google.com/search"}
		assert.Equal(t, tc.want, TrafficSource(rc), "source %q", tc.source)
	}
}

func TestTrafficSourceUnknownExplicitFallsBackToReferrer(t *testing.T) {
	rc := models.RawContext{Source: "banana", Referrer: "https://www.facebook.com/some/post"}
	assert.Equal(t, models.SourceFacebook, TrafficSource(rc))
}

func TestTrafficSourceReferrerSniffing(t *testing.T) {
	cases := []struct {
		referrer string
		want     models.TrafficSource
	}{
		{"", models.SourceDirect},
		{"https://www.google.com/search?q=bike", models.SourceGoogleOrganic},
		{"https://www.googleadservices.com/pagead/aclk", models.SourceGoogleAds},
		{"https://ad.doubleclick.net/ddm/clk", models.SourceGoogleAds},
		{"https://m.facebook.com/", models.SourceFacebook},
		{"https://l.instagram.com/", models.SourceInstagram},
		{"https://t.co/abc123", models.SourceTwitter},
		{"https://www.tiktok.com/@user", models.SourceTikTok},
		{"https://youtu.be/xyz", models.SourceYouTube},
		{"https://www.linkedin.com/feed/", models.SourceLinkedIn},
		{"https://wa.me/123456", models.SourceWhatsApp},
		{"https://some.random.blog/post", models.SourceOtherExternal},
	}
	for _, tc := range cases {
		rc := models.RawContext{Referrer: tc.referrer}
		assert.Equal(t, tc.want, TrafficSource(rc), "referrer %q", tc.referrer)
	}
}

func TestTrafficSourceDeterministic(t *testing.T) {
	rc := models.RawContext{Referrer: "https://www.google.com/url"}
	first := TrafficSource(rc)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, TrafficSource(rc))
	}
}

func TestDeviceClassExplicitApp(t *testing.T) {
	assert.Equal(t, models.DeviceAppIOS,
		DeviceClass(models.RawContext{IsApp: true, AppPlatform: "ios"}))
	assert.Equal(t, models.DeviceAppAndroid,
		DeviceClass(models.RawContext{IsApp: true, AppPlatform: "Android"}))

	// App flag with unknown platform falls back to the user agent.
	rc := models.RawContext{
		IsApp:       true,
		AppPlatform: "windows",
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) Mobile/15E148",
	}
	assert.Equal(t, models.DeviceMobile, DeviceClass(rc))
}

func TestDeviceClassUserAgentSniffing(t *testing.T) {
	cases := []struct {
		ua   string
		want models.DeviceClass
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", models.DeviceDesktop},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", models.DeviceDesktop},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0) Mobile/15E148", models.DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile Safari/537.36", models.DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 13; SM-X700) Safari/537.36", models.DeviceTablet},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", models.DeviceTablet},
		{"Mozilla/5.0 (Linux; U; Tablet PC)", models.DeviceTablet},
		{"", models.DeviceDesktop},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeviceClass(models.RawContext{UserAgent: tc.ua}), "ua %q", tc.ua)
	}
}
