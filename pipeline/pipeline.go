// Package pipeline runs the end-to-end ingestion: decode sources, enrich
// events, sessionize, and hand bounded batches to the loader.
//
// Two goroutines cooperate: the producer walks sources in order and does all
// decoding, enrichment, and session bookkeeping; a single loader goroutine
// drains a bounded batch channel. One loader goroutine plus the page-views
// before-sessions ordering inside each batch keeps upserts idempotent and
// replay safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"edgelytics/ingest/enrich"
	"edgelytics/ingest/models"
	"edgelytics/ingest/parser"
	"edgelytics/ingest/sessions"
	"edgelytics/ingest/source"
	"edgelytics/ingest/store"
)

// DefaultBatchSize bounds how many records accumulate before a batch is
// handed to the loader.
const DefaultBatchSize = 1000

// batchQueueDepth bounds how far decoding may run ahead of loading.
const batchQueueDepth = 2

// Sink receives batches of pipeline output. It returns how many records
// failed to persist individually; a non-nil error aborts the run.
type Sink interface {
	Load(ctx context.Context, b store.Batch) (failed int, err error)
}

// Pipeline wires the decode, enrich, sessionize, and load stages together.
type Pipeline struct {
	enricher  *enrich.Enricher
	sink      Sink
	timeout   time.Duration
	batchSize int
}

// New creates a Pipeline. A non-positive batchSize falls back to
// DefaultBatchSize; the timeout is handled the same way by the session
// builder.
func New(enricher *enrich.Enricher, sink Sink, timeout time.Duration, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		enricher:  enricher,
		sink:      sink,
		timeout:   timeout,
		batchSize: batchSize,
	}
}

// Run processes every source in order and blocks until all output has been
// loaded or the context is cancelled. The returned Stats are valid even when
// the run fails partway.
func (p *Pipeline) Run(ctx context.Context, sources []source.Source) (*Stats, error) {
	stats := &Stats{}
	stats.filesFound.Store(int64(len(sources)))

	logger := slog.With("run_id", uuid.NewString())

	builder := sessions.New(p.timeout)
	batches := make(chan store.Batch, batchQueueDepth)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for b := range batches {
			failed, err := p.sink.Load(gctx, b)
			stats.recordsFailed.Add(int64(failed))
			if err != nil {
				return fmt.Errorf("failed to load batch: %w", err)
			}
			stats.pageViews.Add(int64(len(b.PageViews)))
		}
		return nil
	})

	g.Go(func() error {
		defer close(batches)

		var cur store.Batch
		send := func() error {
			if cur.Empty() {
				return nil
			}
			select {
			case batches <- cur:
				cur = store.Batch{}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		for _, src := range sources {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.processSource(gctx, logger, src, builder, &cur, stats, send); err != nil {
				return err
			}
		}

		for _, closed := range builder.Flush() {
			cur.Sessions = append(cur.Sessions, closed.Session)
			cur.Visitors = append(cur.Visitors, closed.Delta)
			if cur.Len() >= p.batchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
		return send()
	})

	err := g.Wait()
	stats.sessionsBuilt.Store(builder.SessionsBuilt())
	stats.visitorsSeen.Store(builder.VisitorsSeen())

	if err != nil {
		return stats, err
	}
	logger.Info("run complete", "stats", stats)
	return stats, nil
}

// processSource decodes one source into the current batch. Unreadable sources
// and truncated streams are skipped and counted, never fatal; only a load
// failure or cancellation stops the run.
func (p *Pipeline) processSource(
	ctx context.Context,
	logger *slog.Logger,
	src source.Source,
	builder *sessions.Builder,
	cur *store.Batch,
	stats *Stats,
	send func() error,
) error {
	r, err := src.Open(ctx)
	if err != nil {
		logger.Warn("skipping unreadable source", "source", src.Name(), "error", err)
		stats.filesFailed.Add(1)
		return nil
	}
	defer r.Close()

	logger.Info("processing source", "source", src.Name())

	for raw, err := range parser.Events(r, src.Compressed()) {
		if err != nil {
			var decodeErr *parser.DecodeError
			if errors.As(err, &decodeErr) {
				stats.decodeErrors.Add(1)
				logger.Debug("skipping malformed line", "source", src.Name(), "error", err)
				continue
			}
			// Stream-level failure; whatever decoded so far stays in
			// the batch, the rest of the file is lost.
			logger.Warn("source stream failed partway, skipping remainder",
				"source", src.Name(), "error", err)
			stats.filesFailed.Add(1)
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		stats.eventsParsed.Add(1)
		enriched := p.enricher.Enrich(raw)

		sessionID, closed := builder.Observe(enriched)
		if sessionID != "" {
			cur.PageViews = append(cur.PageViews, models.PageView{
				EnrichedEvent: enriched,
				SessionID:     sessionID,
			})
		}
		if closed != nil {
			cur.Sessions = append(cur.Sessions, closed.Session)
			cur.Visitors = append(cur.Visitors, closed.Delta)
		}

		if cur.Len() >= p.batchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}

	stats.filesProcessed.Add(1)
	return nil
}
