package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"edgelytics/ingest/database"
	"edgelytics/ingest/models"
)

// EventStore appends page views to the ClickHouse analytics mirror.
type EventStore struct {
	client *database.ClickHouseClient
}

func NewEventStore(client *database.ClickHouseClient) *EventStore {
	return &EventStore{client: client}
}

// InsertPageViews appends one batch to page_views_raw.
func (s *EventStore) InsertPageViews(ctx context.Context, views []models.PageView) error {
	if len(views) == 0 {
		return nil
	}

	batch, err := s.client.Conn.PrepareBatch(ctx, `
		INSERT INTO page_views_raw (
			event_id, timestamp, visitor_id, session_id, url_path, http_method,
			status_code, device_type, country_code, referrer_category,
			edge_location, edge_result_type, bytes_sent, time_taken_ms
		)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, pv := range views {
		err := batch.Append(
			uuid.New(),
			pv.Timestamp,
			pv.VisitorID,
			pv.SessionID,
			pv.URLPath,
			pv.HTTPMethod,
			uint16(pv.StatusCode),
			pv.DeviceType,
			pv.CountryCode,
			pv.ReferrerCategory,
			pv.EdgeLocation,
			pv.EdgeResultType,
			uint64(pv.BytesSent),
			uint32(pv.TimeTakenMs),
		)
		if err != nil {
			return fmt.Errorf("failed to append page view to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
