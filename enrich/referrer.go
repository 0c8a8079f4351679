package enrich

import (
	"net/url"
	"strings"
)

// Referrer categories.
const (
	CategoryDirect   = "direct"
	CategorySearch   = "search"
	CategorySocial   = "social"
	CategoryReferral = "referral"
)

var searchDomains = []string{
	"google",
	"bing",
	"yahoo",
	"duckduckgo",
	"baidu",
	"yandex",
	"ask",
}

var socialDomains = []string{
	"facebook",
	"twitter",
	"linkedin",
	"reddit",
	"pinterest",
	"instagram",
	"tiktok",
	"youtube",
}

// ReferrerCategorizer splits a referrer URL into domain and path and matches
// the domain against fixed search/social allow-lists. An empty or unparseable
// referrer is "direct".
type ReferrerCategorizer struct{}

func (ReferrerCategorizer) Categorize(referrer string) ReferrerInfo {
	if referrer == "" {
		return ReferrerInfo{Category: CategoryDirect}
	}

	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Host == "" {
		return ReferrerInfo{Category: CategoryDirect}
	}

	info := ReferrerInfo{
		Domain: parsed.Host,
		Path:   parsed.Path,
	}

	domain := strings.ToLower(parsed.Host)
	switch {
	case matchesAny(domain, searchDomains):
		info.Category = CategorySearch
	case matchesAny(domain, socialDomains):
		info.Category = CategorySocial
	default:
		info.Category = CategoryReferral
	}
	return info
}

func matchesAny(domain string, known []string) bool {
	for _, k := range known {
		if strings.Contains(domain, k) {
			return true
		}
	}
	return false
}
