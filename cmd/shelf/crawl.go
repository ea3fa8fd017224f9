package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/shelf/internal/app"
	"github.com/FranksOps/shelf/internal/config"
	"github.com/FranksOps/shelf/internal/logging"
	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/FranksOps/shelf/internal/pipeline"
	"github.com/FranksOps/shelf/internal/report"
)

type crawlOptions struct {
	targetLinks    int
	maxPages       int
	downloadImages bool
	reportFormat   string
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Collect product links and write product rows",
		Long: `Scans listing pages until the target number of new product links is
reached, then fetches and extracts every product. URLs already present in the
configured storage backend are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("target-links") {
				cfg.Crawl.TargetLinks = opts.targetLinks
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Crawl.MaxPages = opts.maxPages
			}
			if cmd.Flags().Changed("download-images") {
				cfg.Crawl.DownloadImages = opts.downloadImages
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, opts.reportFormat, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.targetLinks, "target-links", 0, "number of new product links to process (0 means all)")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "maximum listing pages to scan")
	cmd.Flags().BoolVar(&opts.downloadImages, "download-images", false, "download the main product photo")
	cmd.Flags().StringVar(&opts.reportFormat, "report", "text", "summary format: text, json or none")

	return cmd
}

func runCrawl(parent context.Context, cfg config.Config, format string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close backend", zap.Error(cerr))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Port > 0 {
		srv := metrics.NewServer(cfg.Metrics.Port)
		g.Go(func() error { return srv.Run(gctx) })
		logger.Info("metrics listening", zap.Int("port", cfg.Metrics.Port))
	}

	var summary *report.Summary
	g.Go(func() error {
		// Stops the metrics server once the crawl is over.
		defer cancel()
		var err error
		summary, err = a.Pipeline().Run(gctx, pipeline.Options{TargetLinks: cfg.Crawl.TargetLinks})
		return err
	})

	runErr := g.Wait()
	if summary != nil {
		if err := writeReport(out, format, summary); err != nil {
			logger.Warn("write report", zap.Error(err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl: %w", runErr)
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("crawl interrupted")
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return nil
}

func writeReport(w io.Writer, format string, s *report.Summary) error {
	switch format {
	case "", "text":
		return report.WriteText(w, s)
	case "json":
		return report.WriteJSON(w, s)
	case "none":
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown report format %q, using text\n", format)
		return report.WriteText(w, s)
	}
}
