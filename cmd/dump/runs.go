package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/archive-dump/pkg/archive/config"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
)

func NewRunsCommand() *cobra.Command {
	var book string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded export runs of a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if book == "" {
				return errors.New("--book is required")
			}
			cfg, err := config.Load(config.WithEnv())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			repo, closeLedger, err := cfg.BuildLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			runs, err := repo.ListByBook(cmd.Context(), book)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			return printRuns(cmd.OutOrStdout(), runs, asJSON)
		},
	}

	cmd.Flags().StringVarP(&book, "book", "b", "", "book id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

func printRuns(w io.Writer, runs []*ledger.Run, asJSON bool) error {
	if asJSON {
		if runs == nil {
			runs = []*ledger.Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s@%s  %-9s  raw=%d baked=%d resources=%d  %s",
			run.ID, run.BookID, run.Version, run.Status,
			run.Counts.Raw, run.Counts.Baked, run.Counts.Resource,
			run.StartedAt.Format(time.RFC3339))
		if run.FinishedAt != nil {
			fmt.Fprintf(w, "  (%s)", run.Duration().Round(time.Millisecond))
		}
		if run.Error != "" {
			fmt.Fprintf(w, "  error: %s", run.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
