package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/config"
	"github.com/tendant/archive-dump/pkg/archive/fetch"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
	"github.com/tendant/archive-dump/pkg/archive/objectkey"
	"github.com/tendant/archive-dump/pkg/archive/scrape"
	"github.com/tendant/archive-dump/pkg/archive/upload"
)

const defaultRegion = "us-west-2"

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("book", "b", nil, "book to export, id or id@version (repeatable)")
	cmd.Flags().StringArrayP("page", "p", nil, "page to export without book context (repeatable)")
	cmd.Flags().String("host", "", "content API host (default: ARCHIVE_HOST or "+fetch.DefaultHost+")")
	cmd.Flags().Int("concurrency", 0, "concurrent uploads (default: UPLOAD_CONCURRENCY or 8)")
}

// exportOptions turns flags and positional arguments into config options
// applied after the environment.
func exportOptions(cmd *cobra.Command, args []string) []config.Option {
	opts := []config.Option{config.WithEnv()}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n != 0 {
		opts = append(opts, config.WithConcurrency(n))
	}
	if len(args) > 0 {
		region := defaultRegion
		if len(args) > 1 {
			region = args[1]
		}
		opts = append(opts,
			config.WithS3Storage(region, "", false),
			func(c *config.Config) error {
				return config.WithSingleBucket(args[0], c.Storage.Prefixes)(c)
			},
		)
	}
	return opts
}

func runExport(cmd *cobra.Command, args []string) error {
	books, _ := cmd.Flags().GetStringArray("book")
	pages, _ := cmd.Flags().GetStringArray("page")
	if len(books) == 0 && len(pages) == 0 {
		return errors.New("at least one --book or --page is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(exportOptions(cmd, args)...)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	stores, err := cfg.BuildStores(ctx)
	if err != nil {
		return err
	}
	runs, closeLedger, err := cfg.BuildLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	exp, err := newExporter(cfg, stores, runs, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("Starting export", "host", cfg.Host, "storage", cfg.Describe(),
		"books", len(books), "pages", len(pages))

	var errs []error
	for _, book := range books {
		if _, err := exp.exportBook(ctx, book); err != nil {
			errs = append(errs, err)
		}
	}
	for _, page := range pages {
		if _, err := exp.exportPage(ctx, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// exporter runs one scrape and one dispatch per requested book or page.
type exporter struct {
	host       string
	scraper    *scrape.Scraper
	dispatcher *upload.Dispatcher
	runs       ledger.Repository
	logger     *slog.Logger
}

func newExporter(cfg *config.Config, stores map[string]archive.BlobStore, runs ledger.Repository, logger *slog.Logger) (*exporter, error) {
	client := fetch.NewClient(cfg.Host, fetch.WithLogger(logger))
	dispatcher, err := upload.New(
		objectkey.NewLayoutGenerator(cfg.Layout()),
		stores,
		upload.WithConcurrency(cfg.Concurrency),
		upload.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return &exporter{
		host:       cfg.Host,
		scraper:    scrape.New(client, scrape.WithLogger(logger)),
		dispatcher: dispatcher,
		runs:       runs,
		logger:     logger,
	}, nil
}

func (e *exporter) exportBook(ctx context.Context, hash string) (*ledger.Run, error) {
	ident, err := archive.ParseIdentifier(hash)
	if err != nil {
		return nil, err
	}
	return e.export(ctx, ident, e.scraper.Book(ctx, ident))
}

func (e *exporter) exportPage(ctx context.Context, hash string) (*ledger.Run, error) {
	ident, err := archive.ParseIdentifier(hash)
	if err != nil {
		return nil, err
	}
	return e.export(ctx, ident, e.scraper.Page(ctx, ident))
}

func (e *exporter) export(ctx context.Context, ident archive.Identifier, items iter.Seq2[*archive.ScrapedItem, error]) (*ledger.Run, error) {
	run := ledger.NewRun(ident.ID, ident.Version, e.host)
	if err := e.runs.Record(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	logger := e.logger.With("run_id", run.ID, "ident", ident.String())
	logger.Info("Exporting")

	stats, err := e.dispatcher.Dispatch(ctx, observeVersion(items, &run.Version))
	run.Finish(ledger.Counts{Raw: stats.Raw, Baked: stats.Baked, Resource: stats.Resource}, err)

	// The run outcome is recorded even when the context was cancelled.
	if recErr := e.runs.Record(context.WithoutCancel(ctx), run); recErr != nil {
		logger.Error("Failed to record run", "err", recErr)
	}

	if err != nil {
		logger.Error("Export failed", "err", err, "written", stats.Total())
		return run, fmt.Errorf("export %s: %w", ident, err)
	}
	logger.Info("Export finished", "version", run.Version,
		"raw", stats.Raw, "baked", stats.Baked, "resources", stats.Resource,
		"duration", run.Duration())
	return run, nil
}

// observeVersion records the version of the first item's leading
// identifier, which is the resolved version of the exported entity.
func observeVersion(items iter.Seq2[*archive.ScrapedItem, error], version *string) iter.Seq2[*archive.ScrapedItem, error] {
	seen := false
	return func(yield func(*archive.ScrapedItem, error) bool) {
		for item, err := range items {
			if !seen && item != nil && len(item.Idents) > 0 {
				seen = true
				*version = item.Idents[0].Version
			}
			if !yield(item, err) {
				return
			}
		}
	}
}
