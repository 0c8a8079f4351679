package models

import "time"

// RawEvent is one decoded log line. Immutable once decoded.
//
// ClientIP is transient: it exists only so the geo classifier can key off it.
// It is never written to storage or logs; VisitorID is the durable identity.
type RawEvent struct {
	Timestamp      time.Time // UTC
	ClientIP       string
	VisitorID      string
	HTTPMethod     string
	URLPath        string
	QueryString    string
	StatusCode     int
	BytesSent      int64
	Referrer       string
	UserAgent      string
	EdgeLocation   string
	EdgeResultType string
	TimeTakenMs    int64
}

// EnrichedEvent is a RawEvent plus classifier-derived fields. Immutable.
// Geo fields are empty strings when no geo database is configured or the
// lookup misses; the loader persists them as NULL.
type EnrichedEvent struct {
	RawEvent

	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string

	CountryCode string
	CountryName string
	Region      string
	City        string

	ReferrerDomain   string
	ReferrerPath     string
	ReferrerCategory string
}
