package pipeline

import (
	"log/slog"
	"sync/atomic"
)

// Stats tracks run progress with thread-safe counters. The loader goroutine
// and the producer goroutine both write to it concurrently.
type Stats struct {
	filesFound     atomic.Int64
	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
	eventsParsed   atomic.Int64
	decodeErrors   atomic.Int64
	sessionsBuilt  atomic.Int64
	visitorsSeen   atomic.Int64
	pageViews      atomic.Int64
	recordsFailed  atomic.Int64
}

// FilesFound returns the number of sources given to the run.
func (s *Stats) FilesFound() int64 { return s.filesFound.Load() }

// FilesProcessed returns the number of sources fully decoded.
func (s *Stats) FilesProcessed() int64 { return s.filesProcessed.Load() }

// FilesFailed returns the number of unreadable sources that were skipped.
func (s *Stats) FilesFailed() int64 { return s.filesFailed.Load() }

// EventsParsed returns the number of successfully decoded events.
func (s *Stats) EventsParsed() int64 { return s.eventsParsed.Load() }

// DecodeErrors returns the number of malformed lines skipped.
func (s *Stats) DecodeErrors() int64 { return s.decodeErrors.Load() }

// SessionsBuilt returns the number of sessions closed during the run.
func (s *Stats) SessionsBuilt() int64 { return s.sessionsBuilt.Load() }

// VisitorsSeen returns the number of distinct visitors observed.
func (s *Stats) VisitorsSeen() int64 { return s.visitorsSeen.Load() }

// PageViews returns the number of page view rows handed to the loader.
func (s *Stats) PageViews() int64 { return s.pageViews.Load() }

// RecordsFailed returns the number of records that failed to persist even
// individually.
func (s *Stats) RecordsFailed() int64 { return s.recordsFailed.Load() }

// LogValue implements slog.LogValuer for structured logging.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("files_found", s.FilesFound()),
		slog.Int64("files_processed", s.FilesProcessed()),
		slog.Int64("files_failed", s.FilesFailed()),
		slog.Int64("events_parsed", s.EventsParsed()),
		slog.Int64("decode_errors", s.DecodeErrors()),
		slog.Int64("sessions_built", s.SessionsBuilt()),
		slog.Int64("visitors_seen", s.VisitorsSeen()),
		slog.Int64("page_views", s.PageViews()),
		slog.Int64("records_failed", s.RecordsFailed()),
	)
}
