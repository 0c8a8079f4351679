package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"edgelytics/ingest/enrich"
	"edgelytics/ingest/pipeline"
	"edgelytics/ingest/source"
	"edgelytics/ingest/store"
)

// memSink records every batch it receives.
type memSink struct {
	mu      sync.Mutex
	batches []store.Batch

	failPerBatch int
	loadErr      error
}

func (s *memSink) Load(_ context.Context, b store.Batch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return 0, s.loadErr
	}
	s.batches = append(s.batches, b)
	return s.failPerBatch, nil
}

func (s *memSink) all() store.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out store.Batch
	for _, b := range s.batches {
		out.PageViews = append(out.PageViews, b.PageViews...)
		out.Sessions = append(out.Sessions, b.Sessions...)
		out.Visitors = append(out.Visitors, b.Visitors...)
	}
	return out
}

func logLine(date, clock, ip, path string) string {
	return strings.Join([]string{
		date, clock, "IAD89-C1", "1234", ip, "GET", "d1234.cloudfront.net",
		path, "200", "-", "Mozilla%2F5.0", "-", "-", "Hit", "abcDEF123",
		"example.com", "https", "312", "0.042",
	}, "\t")
}

func writeLog(t *testing.T, dir, name string, lines ...string) source.Source {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "#Version: 1.0\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return source.File{Path: path}
}

func newPipeline(sink pipeline.Sink, batchSize int) *pipeline.Pipeline {
	return pipeline.New(enrich.New(nil, nil, nil), sink, 30*time.Minute, batchSize)
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.9", "/home"),
		logLine("2024-05-01", "12:00:00", "198.51.100.7", "/about"),
		logLine("2024-05-01", "12:05:00", "203.0.113.9", "/products"),
		"not\ta\tvalid\tline",
		logLine("2024-05-01", "12:10:00", "203.0.113.9", "/checkout"),
		logLine("2024-05-01", "12:31:00", "198.51.100.7", "/pricing"),
	)

	sink := &memSink{}
	stats, err := newPipeline(sink, 0).Run(context.Background(), []source.Source{src})
	require.NoError(t, err)

	require.Equal(t, int64(1), stats.FilesFound())
	require.Equal(t, int64(1), stats.FilesProcessed())
	require.Zero(t, stats.FilesFailed())
	require.Equal(t, int64(5), stats.EventsParsed())
	require.Equal(t, int64(1), stats.DecodeErrors())
	require.Equal(t, int64(5), stats.PageViews())
	require.Equal(t, int64(2), stats.VisitorsSeen())

	// The 31-minute gap splits the second visitor's activity in two.
	require.Equal(t, int64(3), stats.SessionsBuilt())

	got := sink.all()
	require.Len(t, got.PageViews, 5)
	require.Len(t, got.Sessions, 3)
	require.Len(t, got.Visitors, 3)

	for _, pv := range got.PageViews {
		require.Len(t, pv.SessionID, 32)
		require.Len(t, pv.VisitorID, 32)
	}

	byVisitor := map[string]int64{}
	for _, s := range got.Sessions {
		byVisitor[s.VisitorID] += s.PageViewCount
		require.Len(t, s.SessionID, 32)
	}
	require.Len(t, byVisitor, 2)

	var counts []int64
	for _, s := range got.Sessions {
		counts = append(counts, s.PageViewCount)
	}
	require.ElementsMatch(t, []int64{3, 1, 1}, counts)
}

func TestRunSplitsBatches(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.9", "/a"),
		logLine("2024-05-01", "12:01:00", "203.0.113.9", "/b"),
		logLine("2024-05-01", "12:02:00", "203.0.113.9", "/c"),
		logLine("2024-05-01", "12:03:00", "203.0.113.9", "/d"),
		logLine("2024-05-01", "12:04:00", "203.0.113.9", "/e"),
	)

	sink := &memSink{}
	stats, err := newPipeline(sink, 2).Run(context.Background(), []source.Source{src})
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.PageViews())
	require.GreaterOrEqual(t, len(sink.batches), 2)

	// A session upsert never lands before the batch carrying its first
	// page view.
	seen := map[string]bool{}
	for _, b := range sink.batches {
		for _, pv := range b.PageViews {
			seen[pv.SessionID] = true
		}
		for _, s := range b.Sessions {
			require.True(t, seen[s.SessionID], "session %s loaded before its page views", s.SessionID)
		}
	}
}

func TestRunFlushKeepsBatchesBounded(t *testing.T) {
	dir := t.TempDir()
	// Six visitors, all still open at end of input: the force-close emits
	// twelve records (six sessions, six deltas) that must not ship as one
	// oversized batch.
	src := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.1", "/a"),
		logLine("2024-05-01", "12:00:01", "203.0.113.2", "/b"),
		logLine("2024-05-01", "12:00:02", "203.0.113.3", "/c"),
		logLine("2024-05-01", "12:00:03", "203.0.113.4", "/d"),
		logLine("2024-05-01", "12:00:04", "203.0.113.5", "/e"),
		logLine("2024-05-01", "12:00:05", "203.0.113.6", "/f"),
	)

	sink := &memSink{}
	stats, err := newPipeline(sink, 2).Run(context.Background(), []source.Source{src})
	require.NoError(t, err)
	require.Equal(t, int64(6), stats.SessionsBuilt())

	for _, b := range sink.batches {
		require.LessOrEqual(t, b.Len(), 2, "batch exceeds configured size")
	}

	got := sink.all()
	require.Len(t, got.PageViews, 6)
	require.Len(t, got.Sessions, 6)
	require.Len(t, got.Visitors, 6)
}

func TestRunSkipsUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	missing := source.File{Path: filepath.Join(dir, "missing.log")}
	valid := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.9", "/home"),
	)

	sink := &memSink{}
	stats, err := newPipeline(sink, 0).Run(context.Background(), []source.Source{missing, valid})
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.FilesFound())
	require.Equal(t, int64(1), stats.FilesFailed())
	require.Equal(t, int64(1), stats.FilesProcessed())
	require.Equal(t, int64(1), stats.EventsParsed())
	require.Len(t, sink.all().PageViews, 1)
}

func TestRunLoadFailureAborts(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.9", "/home"),
	)

	sink := &memSink{loadErr: errors.New("connection reset")}
	_, err := newPipeline(sink, 0).Run(context.Background(), []source.Source{src})
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to load batch")
}

func TestRunCountsFailedRecords(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "access.log",
		logLine("2024-05-01", "12:00:00", "203.0.113.9", "/home"),
	)

	sink := &memSink{failPerBatch: 2}
	stats, err := newPipeline(sink, 0).Run(context.Background(), []source.Source{src})
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.RecordsFailed())
}

func TestRunNoSources(t *testing.T) {
	sink := &memSink{}
	stats, err := newPipeline(sink, 0).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, stats.FilesFound())
	require.Zero(t, stats.EventsParsed())
	require.Empty(t, sink.batches)
}
