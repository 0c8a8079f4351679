package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"edgelytics/ingest/config"
	"edgelytics/ingest/database"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the warehouse tables",
	Long: `Creates the page_views, sessions and visitors tables in Postgres, plus the
page_views_raw table in ClickHouse when a mirror is configured. All statements
are idempotent; re-running against an initialized warehouse is a no-op.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pg, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.InitSchema(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	slog.Info("postgres schema ready")

	if cfg.ClickHouse.Enabled() {
		ch, err := database.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer ch.Close()

		if err := ch.InitSchema(cmd.Context()); err != nil {
			return fmt.Errorf("failed to initialize clickhouse schema: %w", err)
		}
		slog.Info("clickhouse schema ready")
	}

	return nil
}
