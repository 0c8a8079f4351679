package database

import (
	"context"
	"fmt"
)

// Postgres schema. Session and visitor ids carry UNIQUE constraints so the
// loader can upsert with ON CONFLICT; page views are append-only.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS page_views (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		visitor_id VARCHAR(255),
		session_id VARCHAR(255),
		url_path VARCHAR(1024) NOT NULL,
		query_string TEXT,
		http_method VARCHAR(10),
		status_code INTEGER,
		referrer_domain VARCHAR(255),
		referrer_path VARCHAR(1024),
		referrer_category VARCHAR(20),
		user_agent TEXT,
		browser VARCHAR(100),
		browser_version VARCHAR(50),
		os VARCHAR(100),
		os_version VARCHAR(50),
		device_type VARCHAR(50),
		country_code VARCHAR(2),
		country_name VARCHAR(100),
		region VARCHAR(100),
		city VARCHAR(100),
		edge_location VARCHAR(50),
		edge_result_type VARCHAR(50),
		bytes_sent BIGINT,
		time_taken_ms INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_timestamp ON page_views (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_url_path ON page_views (url_path)`,
	`CREATE INDEX IF NOT EXISTS idx_visitor_session ON page_views (visitor_id, session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_timestamp_visitor ON page_views (timestamp, visitor_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		session_id VARCHAR(255) UNIQUE NOT NULL,
		visitor_id VARCHAR(255) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP,
		duration_seconds INTEGER,
		page_views_count INTEGER DEFAULT 0,
		landing_page VARCHAR(1024),
		exit_page VARCHAR(1024),
		device_type VARCHAR(50),
		country_code VARCHAR(2)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_visitor_id ON sessions (visitor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_start_time_visitor ON sessions (start_time, visitor_id)`,
	`CREATE TABLE IF NOT EXISTS visitors (
		id BIGSERIAL PRIMARY KEY,
		visitor_id VARCHAR(255) UNIQUE NOT NULL,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		total_sessions INTEGER DEFAULT 0,
		total_page_views INTEGER DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_first_last_seen ON visitors (first_seen, last_seen)`,
}

const clickhouseSchema = `
	CREATE TABLE IF NOT EXISTS page_views_raw (
		event_id UUID,
		timestamp DateTime64(3),
		visitor_id String,
		session_id String,
		url_path String,
		http_method LowCardinality(String),
		status_code UInt16,
		device_type LowCardinality(String),
		country_code LowCardinality(String),
		referrer_category LowCardinality(String),
		edge_location LowCardinality(String),
		edge_result_type LowCardinality(String),
		bytes_sent UInt64,
		time_taken_ms UInt32
	) ENGINE = MergeTree()
	ORDER BY (timestamp, visitor_id)
`

// InitSchema creates the Postgres tables and indexes if they do not exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// InitSchema creates the ClickHouse mirror table if it does not exist.
func (c *ClickHouseClient) InitSchema(ctx context.Context) error {
	if err := c.Conn.Exec(ctx, clickhouseSchema); err != nil {
		return fmt.Errorf("failed to create page_views_raw: %w", err)
	}
	return nil
}
