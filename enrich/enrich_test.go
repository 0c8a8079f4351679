package enrich_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"edgelytics/ingest/enrich"
	"edgelytics/ingest/models"
)

func rawEvent() models.RawEvent {
	return models.RawEvent{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ClientIP:  "203.0.113.9",
		VisitorID: "abc123",
		URLPath:   "/products",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Referrer:  "https://www.google.com/search?q=widgets",
	}
}

func TestEnrichWithRealClassifiers(t *testing.T) {
	e := enrich.New(enrich.UAClassifier{}, nil, enrich.ReferrerCategorizer{})

	out := e.Enrich(rawEvent())
	require.Equal(t, "Chrome", out.Browser)
	require.Equal(t, enrich.DeviceDesktop, out.DeviceType)
	require.Equal(t, "www.google.com", out.ReferrerDomain)
	require.Equal(t, enrich.CategorySearch, out.ReferrerCategory)
	// No geo database configured: geo fields stay null.
	require.Empty(t, out.CountryCode)
	require.Empty(t, out.City)
}

func TestEnrichNeverFailsOnGarbage(t *testing.T) {
	e := enrich.New(enrich.UAClassifier{}, nil, enrich.ReferrerCategorizer{})

	ev := rawEvent()
	ev.UserAgent = "\x00\x01 not a user agent"
	ev.Referrer = "://%%%"
	out := e.Enrich(ev)
	require.Equal(t, enrich.CategoryDirect, out.ReferrerCategory)
	require.NotEmpty(t, out.DeviceType)
}

func TestUAClassifier(t *testing.T) {
	tests := []struct {
		name   string
		ua     string
		device string
	}{
		{"empty", "", enrich.DeviceUnknown},
		{"bot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", enrich.DeviceBot},
		{"mobile", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", enrich.DeviceMobile},
		{"tablet", "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1", enrich.DeviceTablet},
		{"desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", enrich.DeviceDesktop},
	}

	var c enrich.UAClassifier
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.device, c.Classify(tt.ua).DeviceType)
		})
	}
}

func TestReferrerCategorizer(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		category string
		domain   string
	}{
		{"empty is direct", "", enrich.CategoryDirect, ""},
		{"garbage is direct", "not a url at all", enrich.CategoryDirect, ""},
		{"search", "https://www.bing.com/search?q=x", enrich.CategorySearch, "www.bing.com"},
		{"social", "https://m.facebook.com/story", enrich.CategorySocial, "m.facebook.com"},
		{"referral", "https://news.example.org/article/42", enrich.CategoryReferral, "news.example.org"},
	}

	var c enrich.ReferrerCategorizer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := c.Categorize(tt.referrer)
			require.Equal(t, tt.category, info.Category)
			require.Equal(t, tt.domain, info.Domain)
		})
	}
}

func TestNoopClassifiers(t *testing.T) {
	require.Equal(t, enrich.DeviceUnknown, enrich.NoopUserAgent{}.Classify("anything").DeviceType)

	_, ok := enrich.NoopGeo{}.Lookup("203.0.113.9")
	require.False(t, ok)
}
