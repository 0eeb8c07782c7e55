package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var envFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "dump [bucket [region]]",
		Short: "Export archive books into object storage",
		Long: `Export books from the archive content API into a content-addressed
snapshot in object storage.

Every book is written as raw and baked JSON/HTML for the book and each of its
pages, plus the resources they reference. With a bucket argument the
single-bucket S3 layout is used (region defaults to us-west-2); otherwise
storage is taken from STORAGE_URL and S3_*_BUCKET.`,
		Args:          cobra.MaximumNArgs(2),
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			slog.SetDefault(newLogger(verbose))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default: .env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	addExportFlags(rootCmd)
	rootCmd.RunE = runExport

	rootCmd.AddCommand(NewRunsCommand())

	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
