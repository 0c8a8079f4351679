package enrich

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device type buckets.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// UAClassifier classifies user-agent strings with mssola/useragent.
type UAClassifier struct{}

func (UAClassifier) Classify(s string) Classification {
	if s == "" {
		return Classification{DeviceType: DeviceUnknown}
	}

	ua := useragent.New(s)
	name, version := ua.Browser()
	osInfo := ua.OSInfo()

	c := Classification{
		Browser:        name,
		BrowserVersion: version,
		OS:             osInfo.Name,
		OSVersion:      osInfo.Version,
	}

	switch {
	case ua.Bot():
		c.DeviceType = DeviceBot
	case isTablet(s):
		c.DeviceType = DeviceTablet
	case ua.Mobile():
		c.DeviceType = DeviceMobile
	case name != "":
		c.DeviceType = DeviceDesktop
	default:
		c.DeviceType = DeviceUnknown
	}
	return c
}

func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	return strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet")
}
