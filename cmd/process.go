package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"edgelytics/ingest/config"
	"edgelytics/ingest/database"
	"edgelytics/ingest/enrich"
	"edgelytics/ingest/pipeline"
	"edgelytics/ingest/source"
	"edgelytics/ingest/store"
)

var (
	processS3        bool
	processPrefix    string
	processBucket    string
	processGeoIP     string
	processTimeout   int
	processBatchSize int
)

var processCmd = &cobra.Command{
	Use:   "process [glob...]",
	Short: "Ingest access logs into the warehouse",
	Long: `Processes the given local log files (glob patterns, plain or .gz), or the
configured S3 bucket with --s3, and loads page views, sessions and visitor
rollups into the warehouse. Reprocessing the same files is safe: sessions and
visitors are upserted under stable derived identifiers.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processS3, "s3", false, "read logs from the configured S3 bucket instead of local files")
	processCmd.Flags().StringVar(&processPrefix, "prefix", "", "S3 key prefix to ingest (with --s3)")
	processCmd.Flags().StringVar(&processBucket, "bucket", "", "S3 bucket, overrides S3_BUCKET (with --s3)")
	processCmd.Flags().StringVar(&processGeoIP, "geoip", "", "path to a MaxMind GeoIP2 database, overrides GEOIP_DB_PATH")
	processCmd.Flags().IntVar(&processTimeout, "timeout", 0, "session inactivity timeout in minutes, overrides SESSION_TIMEOUT_MINUTES")
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "loader batch size, overrides LOAD_BATCH_SIZE")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.SessionTimeout = time.Duration(processTimeout) * time.Minute
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = processBatchSize
	}
	if processGeoIP != "" {
		cfg.GeoIPDBPath = processGeoIP
	}
	if processBucket != "" {
		cfg.S3.Bucket = processBucket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, err := gatherSources(ctx, cfg, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		slog.Info("no log files matched, nothing to do")
		return nil
	}

	pg, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	var mirror *store.EventStore
	if cfg.ClickHouse.Enabled() {
		ch, err := database.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse mirror: %w", err)
		}
		defer ch.Close()
		mirror = store.NewEventStore(ch)
	}

	var geo enrich.GeoClassifier
	if cfg.GeoIPDBPath != "" {
		mm, err := enrich.OpenMaxMind(cfg.GeoIPDBPath)
		if err != nil {
			// Geo enrichment is optional; every lookup becomes a miss.
			slog.Warn("geo database unavailable, geo fields will be null",
				"path", cfg.GeoIPDBPath, "error", err)
		} else {
			defer mm.Close()
			geo = mm
		}
	}

	enricher := enrich.New(enrich.UAClassifier{}, geo, enrich.ReferrerCategorizer{})
	loader := store.NewLoader(pg.DB, mirror)
	p := pipeline.New(enricher, loader, cfg.SessionTimeout, cfg.BatchSize)

	stats, err := p.Run(ctx, sources)
	if err != nil {
		slog.Error("run aborted", "stats", stats, "error", err)
		return err
	}
	return nil
}

func gatherSources(ctx context.Context, cfg *config.Config, globs []string) ([]source.Source, error) {
	if processS3 {
		if !cfg.S3.Enabled() {
			return nil, errors.New("--s3 requires S3_ENDPOINT to be configured")
		}
		client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
			Secure: cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return source.ListObjects(ctx, client, cfg.S3.Bucket, processPrefix)
	}

	if len(globs) == 0 {
		return nil, errors.New("no log file patterns given (or use --s3)")
	}
	return source.Glob(globs)
}
