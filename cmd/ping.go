package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"edgelytics/ingest/config"
	"edgelytics/ingest/database"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check warehouse connectivity",
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pg, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	version, err := pg.Version()
	if err != nil {
		return fmt.Errorf("failed to query postgres version: %w", err)
	}
	cmd.Printf("postgres: %s\n", version)

	if cfg.ClickHouse.Enabled() {
		ch, err := database.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		ch.Close()
		cmd.Println("clickhouse: ok")
	}

	return nil
}
