// Package store persists pipeline output. Postgres is the system of record;
// an optional ClickHouse mirror receives page-view batches for ad-hoc
// analytics.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"edgelytics/ingest/models"
)

// Batch is one bounded unit of loader work. Page views are written before
// session upserts inside the same transaction, which preserves the invariant
// that a session row never lands before its constituent page views.
type Batch struct {
	PageViews []models.PageView
	Sessions  []models.Session
	Visitors  []models.VisitorDelta
}

func (b Batch) Len() int {
	return len(b.PageViews) + len(b.Sessions) + len(b.Visitors)
}

func (b Batch) Empty() bool { return b.Len() == 0 }

// RecordError reports one record that failed to persist even in its own
// transaction. It is logged and counted, never fatal.
type RecordError struct {
	Kind string
	Key  string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

const insertPageView = `
	INSERT INTO page_views (
		timestamp, visitor_id, session_id, url_path, query_string, http_method,
		status_code, referrer_domain, referrer_path, referrer_category,
		user_agent, browser, browser_version, os, os_version, device_type,
		country_code, country_name, region, city, edge_location,
		edge_result_type, bytes_sent, time_taken_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

const upsertSession = `
	INSERT INTO sessions (
		session_id, visitor_id, start_time, end_time, duration_seconds,
		page_views_count, landing_page, exit_page, device_type, country_code
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (session_id) DO UPDATE SET
		end_time = EXCLUDED.end_time,
		duration_seconds = EXCLUDED.duration_seconds,
		page_views_count = EXCLUDED.page_views_count,
		exit_page = EXCLUDED.exit_page`

const upsertVisitor = `
	INSERT INTO visitors (
		visitor_id, first_seen, last_seen, total_sessions, total_page_views
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (visitor_id) DO UPDATE SET
		first_seen = LEAST(visitors.first_seen, EXCLUDED.first_seen),
		last_seen = GREATEST(visitors.last_seen, EXCLUDED.last_seen),
		total_sessions = visitors.total_sessions + EXCLUDED.total_sessions,
		total_page_views = visitors.total_page_views + EXCLUDED.total_page_views`

// Loader writes batches to Postgres, mirroring page views to ClickHouse when
// a mirror is configured.
type Loader struct {
	db     *sql.DB
	mirror *EventStore
}

// NewLoader creates a Loader. mirror may be nil.
func NewLoader(db *sql.DB, mirror *EventStore) *Loader {
	return &Loader{db: db, mirror: mirror}
}

// Load commits one batch. The whole batch is tried as a single transaction
// first; if that fails, every record is retried individually so one bad
// record cannot block the rest. Individually failing records are logged and
// counted in the returned failed count; they are reported, not fatal.
func (l *Loader) Load(ctx context.Context, b Batch) (failed int, err error) {
	if b.Empty() {
		return 0, nil
	}

	if err := l.loadTx(ctx, b); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		slog.Warn("batch transaction failed, retrying records individually",
			"error", err, "batch_size", b.Len())
		failed = l.loadIndividually(ctx, b)
	}

	l.mirrorPageViews(ctx, b.PageViews)
	return failed, ctx.Err()
}

func (l *Loader) loadTx(ctx context.Context, b Batch) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pv := range b.PageViews {
		if _, err := tx.ExecContext(ctx, insertPageView, pageViewArgs(pv)...); err != nil {
			return fmt.Errorf("page view insert: %w", err)
		}
	}
	for _, s := range b.Sessions {
		if _, err := tx.ExecContext(ctx, upsertSession, sessionArgs(s)...); err != nil {
			return fmt.Errorf("session upsert: %w", err)
		}
	}
	for _, v := range b.Visitors {
		if _, err := tx.ExecContext(ctx, upsertVisitor, visitorArgs(v)...); err != nil {
			return fmt.Errorf("visitor upsert: %w", err)
		}
	}

	return tx.Commit()
}

// loadIndividually retries each record in its own implicit transaction.
func (l *Loader) loadIndividually(ctx context.Context, b Batch) (failed int) {
	exec := func(kind, key, query string, args []any) {
		if ctx.Err() != nil {
			return
		}
		if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
			failed++
			recErr := &RecordError{Kind: kind, Key: key, Err: err}
			slog.Warn("record failed to persist, skipping", "error", recErr)
		}
	}

	for _, pv := range b.PageViews {
		exec("page_view", pv.SessionID, insertPageView, pageViewArgs(pv))
	}
	for _, s := range b.Sessions {
		exec("session", s.SessionID, upsertSession, sessionArgs(s))
	}
	for _, v := range b.Visitors {
		exec("visitor", v.VisitorID, upsertVisitor, visitorArgs(v))
	}
	return failed
}

// mirrorPageViews forwards the batch to the ClickHouse mirror. Best effort:
// Postgres is the system of record, so a mirror failure is logged and the
// run continues.
func (l *Loader) mirrorPageViews(ctx context.Context, views []models.PageView) {
	if l.mirror == nil || len(views) == 0 {
		return
	}
	if err := l.mirror.InsertPageViews(ctx, views); err != nil {
		slog.Warn("failed to mirror page views to ClickHouse", "error", err, "count", len(views))
	}
}

func pageViewArgs(pv models.PageView) []any {
	return []any{
		pv.Timestamp,
		nullString(pv.VisitorID),
		nullString(pv.SessionID),
		pv.URLPath,
		nullString(pv.QueryString),
		nullString(pv.HTTPMethod),
		nullInt(int64(pv.StatusCode)),
		nullString(pv.ReferrerDomain),
		nullString(pv.ReferrerPath),
		nullString(pv.ReferrerCategory),
		nullString(pv.UserAgent),
		nullString(pv.Browser),
		nullString(pv.BrowserVersion),
		nullString(pv.OS),
		nullString(pv.OSVersion),
		nullString(pv.DeviceType),
		nullString(pv.CountryCode),
		nullString(pv.CountryName),
		nullString(pv.Region),
		nullString(pv.City),
		nullString(pv.EdgeLocation),
		nullString(pv.EdgeResultType),
		pv.BytesSent,
		pv.TimeTakenMs,
	}
}

func sessionArgs(s models.Session) []any {
	return []any{
		s.SessionID,
		s.VisitorID,
		s.StartTime,
		s.EndTime,
		s.DurationSeconds,
		s.PageViewCount,
		nullString(s.LandingPage),
		nullString(s.ExitPage),
		nullString(s.DeviceType),
		nullString(s.CountryCode),
	}
}

func visitorArgs(v models.VisitorDelta) []any {
	return []any{
		v.VisitorID,
		v.FirstSeen,
		v.LastSeen,
		v.TotalSessions,
		v.TotalPageViews,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
