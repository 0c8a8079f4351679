// Package sessions reconstructs visitor sessions from an ordered-by-arrival
// stream of enriched events.
//
// The builder is an explicit per-visitor state machine: no session -> open
// session -> closed session. Boundary decisions are made eagerly from the
// most-recently-seen event per visitor, so resident state is bounded by the
// number of visitors active within one timeout window, not by event volume.
// It is not safe for concurrent use; the pipeline feeds it from exactly one
// goroutine.
package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"edgelytics/ingest/models"
)

// DefaultTimeout is the inactivity gap that closes a session.
const DefaultTimeout = 30 * time.Minute

// Closed is the output of one session closure: the immutable session plus
// the visitor-level delta it contributes.
type Closed struct {
	Session models.Session
	Delta   models.VisitorDelta
}

type openSession struct {
	id          string
	visitorID   string
	start       time.Time
	lastSeen    time.Time
	pageViews   int64
	landingPage string
	exitPage    string
	deviceType  string
	countryCode string
}

// Builder holds the open-session arena, indexed by visitor id.
type Builder struct {
	timeout time.Duration
	open    map[string]*openSession

	seen         map[string]struct{}
	sessionCount int64
}

// New creates a Builder with the given inactivity timeout.
func New(timeout time.Duration) *Builder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Builder{
		timeout: timeout,
		open:    make(map[string]*openSession),
		seen:    make(map[string]struct{}),
	}
}

// Observe feeds one event into the state machine. It returns the session id
// the event was assigned to, and the previous session for the same visitor
// if this event closed it.
//
// An event with no visitor id cannot be sessionized; it gets an empty session
// id and no state changes.
//
// Out-of-order tolerance: an event whose timestamp is not later than the open
// session's last-seen time folds into the session (count and landing page
// unchanged in meaning, boundaries untouched). Boundary decisions only ever
// compare against the most-recently-seen timestamp, so a late-but-in-window
// event never reopens a session already closed by a later-seen one.
func (b *Builder) Observe(e models.EnrichedEvent) (string, *Closed) {
	if e.VisitorID == "" {
		return "", nil
	}

	cur, ok := b.open[e.VisitorID]
	if !ok {
		s := b.openNew(e)
		return s.id, nil
	}

	if e.Timestamp.Sub(cur.lastSeen) > b.timeout {
		closed := b.close(cur)
		s := b.openNew(e)
		return s.id, &closed
	}

	cur.pageViews++
	if !e.Timestamp.Before(cur.lastSeen) {
		cur.lastSeen = e.Timestamp
		cur.exitPage = e.URLPath
	}
	return cur.id, nil
}

// Flush force-closes every open session at end of input, using each
// session's last seen event time as its end time. Results are ordered by
// visitor id for deterministic output.
func (b *Builder) Flush() []Closed {
	if len(b.open) == 0 {
		return nil
	}

	visitors := make([]string, 0, len(b.open))
	for v := range b.open {
		visitors = append(visitors, v)
	}
	sort.Strings(visitors)

	closed := make([]Closed, 0, len(visitors))
	for _, v := range visitors {
		closed = append(closed, b.close(b.open[v]))
	}
	return closed
}

// OpenCount reports the number of currently open sessions.
func (b *Builder) OpenCount() int { return len(b.open) }

// SessionsBuilt reports the number of sessions closed so far.
func (b *Builder) SessionsBuilt() int64 { return b.sessionCount }

// VisitorsSeen reports the number of distinct visitors observed this run.
func (b *Builder) VisitorsSeen() int64 { return int64(len(b.seen)) }

func (b *Builder) openNew(e models.EnrichedEvent) *openSession {
	s := &openSession{
		id:          SessionID(e.VisitorID, e.Timestamp),
		visitorID:   e.VisitorID,
		start:       e.Timestamp,
		lastSeen:    e.Timestamp,
		pageViews:   1,
		landingPage: e.URLPath,
		exitPage:    e.URLPath,
		deviceType:  e.DeviceType,
		countryCode: e.CountryCode,
	}
	b.open[e.VisitorID] = s
	b.seen[e.VisitorID] = struct{}{}
	return s
}

func (b *Builder) close(s *openSession) Closed {
	delete(b.open, s.visitorID)
	b.sessionCount++

	return Closed{
		Session: models.Session{
			SessionID:       s.id,
			VisitorID:       s.visitorID,
			StartTime:       s.start,
			EndTime:         s.lastSeen,
			DurationSeconds: int64(s.lastSeen.Sub(s.start) / time.Second),
			PageViewCount:   s.pageViews,
			LandingPage:     s.landingPage,
			ExitPage:        s.exitPage,
			DeviceType:      s.deviceType,
			CountryCode:     s.countryCode,
		},
		Delta: models.VisitorDelta{
			VisitorID:      s.visitorID,
			FirstSeen:      s.start,
			LastSeen:       s.lastSeen,
			TotalSessions:  1,
			TotalPageViews: s.pageViews,
		},
	}
}

// SessionID derives the stable session identity from the visitor id and the
// session start time. Reprocessing the same input yields the same id, which
// the loader relies on for idempotent upserts.
func SessionID(visitorID string, start time.Time) string {
	key := visitorID + ":" + start.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}
