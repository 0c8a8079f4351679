package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"edgelytics/ingest/cmd"
)

func main() {
	// Load .env at the very start so configuration sees it.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := cmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
