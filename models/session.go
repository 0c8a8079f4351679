package models

import "time"

// PageView is one persisted EnrichedEvent, tagged with the session it was
// assigned to. SessionID is empty when the line had no usable client IP.
type PageView struct {
	EnrichedEvent

	SessionID string
}

// Session is a bounded run of page views from one visitor with no inactivity
// gap exceeding the session timeout. SessionID is a deterministic hash of
// (visitor id, start time), so reprocessing the same input produces the same
// row and the loader's upsert keeps it idempotent.
type Session struct {
	SessionID       string
	VisitorID       string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	PageViewCount   int64
	LandingPage     string
	ExitPage        string
	DeviceType      string
	CountryCode     string
}

// VisitorDelta is the visitor-level increment emitted when one session closes.
// The loader accumulates deltas on conflict (min first seen, max last seen,
// summed counters) rather than overwriting, so visitors correctly span files
// and runs.
type VisitorDelta struct {
	VisitorID      string
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalSessions  int64
	TotalPageViews int64
}
