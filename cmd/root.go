// Package cmd defines the ingest command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Sessionize CDN access logs into a Postgres warehouse",
	Long: `ingest decodes CDN access logs, enriches each request with user-agent,
geo and referrer classifications, reconstructs visitor sessions, and loads
the results into Postgres (with an optional ClickHouse mirror).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
