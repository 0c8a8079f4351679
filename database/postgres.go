package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Postgres wraps the relational sink connection. Page views, sessions and
// visitors all live here; this is the system of record.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings the Postgres sink. An unreachable sink is a
// configuration error and aborts the run before any source is processed.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	slog.Info("connected to PostgreSQL")
	return &Postgres{DB: db}, nil
}

// Version reports the server version string, used by the ping command.
func (p *Postgres) Version() (string, error) {
	var version string
	if err := p.DB.QueryRow("SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version, nil
}

func (p *Postgres) Close() {
	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}
}
