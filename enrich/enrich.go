// Package enrich turns raw events into enriched events by consulting three
// independent classifier collaborators: user agent, geo, and referrer.
//
// Every classifier is a total function: unknown, empty or garbage input
// produces a defined "unknown/absent" result, never an error. A classifier
// miss can therefore never fail the pipeline.
package enrich

import "edgelytics/ingest/models"

// Classification is the user-agent classifier output.
type Classification struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
}

// GeoInfo is the geo classifier output for a hit.
type GeoInfo struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
}

// ReferrerInfo is the referrer categorizer output.
type ReferrerInfo struct {
	Domain   string
	Path     string
	Category string
}

// UserAgentClassifier classifies a raw user-agent string.
type UserAgentClassifier interface {
	Classify(ua string) Classification
}

// GeoClassifier resolves an IP-derived key to a location. A miss (no
// database configured, private IP, unknown address) returns ok=false and is
// a normal outcome, not an error.
type GeoClassifier interface {
	Lookup(ip string) (GeoInfo, bool)
}

// ReferrerClassifier categorizes a raw referrer URL.
type ReferrerClassifier interface {
	Categorize(referrer string) ReferrerInfo
}

// Enricher applies all three classifiers to a raw event. It is pure and
// side-effect free; swapping a classifier for a no-op changes the derived
// fields but never the event count.
type Enricher struct {
	ua  UserAgentClassifier
	geo GeoClassifier
	ref ReferrerClassifier
}

// New builds an Enricher. Nil classifiers fall back to no-op implementations
// so callers never branch on what is configured.
func New(ua UserAgentClassifier, geo GeoClassifier, ref ReferrerClassifier) *Enricher {
	if ua == nil {
		ua = NoopUserAgent{}
	}
	if geo == nil {
		geo = NoopGeo{}
	}
	if ref == nil {
		ref = ReferrerCategorizer{}
	}
	return &Enricher{ua: ua, geo: geo, ref: ref}
}

// Enrich derives the classifier fields for one event.
func (e *Enricher) Enrich(raw models.RawEvent) models.EnrichedEvent {
	out := models.EnrichedEvent{RawEvent: raw}

	ua := e.ua.Classify(raw.UserAgent)
	out.Browser = ua.Browser
	out.BrowserVersion = ua.BrowserVersion
	out.OS = ua.OS
	out.OSVersion = ua.OSVersion
	out.DeviceType = ua.DeviceType

	if geo, ok := e.geo.Lookup(raw.ClientIP); ok {
		out.CountryCode = geo.CountryCode
		out.CountryName = geo.CountryName
		out.Region = geo.Region
		out.City = geo.City
	}

	ref := e.ref.Categorize(raw.Referrer)
	out.ReferrerDomain = ref.Domain
	out.ReferrerPath = ref.Path
	out.ReferrerCategory = ref.Category

	return out
}

// NoopUserAgent satisfies UserAgentClassifier when no parser is configured.
type NoopUserAgent struct{}

func (NoopUserAgent) Classify(string) Classification {
	return Classification{DeviceType: DeviceUnknown}
}

// NoopGeo satisfies GeoClassifier when no geo database is configured: every
// lookup is a miss and all geo fields stay null.
type NoopGeo struct{}

func (NoopGeo) Lookup(string) (GeoInfo, bool) { return GeoInfo{}, false }
