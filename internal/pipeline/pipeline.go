// Package pipeline runs one crawl: collect product links, assemble each
// product and persist it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/FranksOps/shelf/internal/report"
	"github.com/FranksOps/shelf/internal/scraper"
	"github.com/FranksOps/shelf/internal/storage"
	"github.com/FranksOps/shelf/pkg/mask"
)

// LinkCollector discovers product URLs.
type LinkCollector interface {
	Collect(ctx context.Context, target int, exclude map[string]struct{}) (*scraper.CollectResult, error)
}

// ProductAssembler builds one product from its URL.
type ProductAssembler interface {
	Assemble(ctx context.Context, productURL string) (*storage.Product, error)
}

// Pipeline wires the crawl stages together.
type Pipeline struct {
	Collector LinkCollector
	Assembler ProductAssembler
	Backend   storage.Backend
	Masker    *mask.Masker
	Logger    *zap.Logger
}

// Options tune a single run.
type Options struct {
	// TargetLinks caps how many new products are processed; 0 means all.
	TargetLinks int
}

// Run executes one crawl. Products that fail are logged and skipped; a
// listing failure or cancellation ends the run with an error. The summary is
// returned in every case where the run started.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Summary, error) {
	if p.Collector == nil {
		return nil, fmt.Errorf("pipeline: collector is nil")
	}
	if p.Assembler == nil {
		return nil, fmt.Errorf("pipeline: assembler is nil")
	}
	if p.Backend == nil {
		return nil, fmt.Errorf("pipeline: backend is nil")
	}
	masker := p.Masker
	if masker == nil {
		masker = mask.New(mask.Config{})
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	summary := report.New(uuid.NewString(), time.Now())
	logger = logger.With(zap.String("run_id", summary.RunID))
	defer func() { summary.Finish(time.Now()) }()

	existing, err := p.Backend.URLs(ctx)
	if err != nil {
		return summary, fmt.Errorf("pipeline: load stored urls: %w", err)
	}
	exclude := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		exclude[u] = struct{}{}
	}
	summary.Excluded = len(exclude)
	if len(exclude) > 0 {
		logger.Info("existing urls will be skipped", zap.Int("count", len(exclude)))
	}

	res, err := p.Collector.Collect(ctx, opts.TargetLinks, exclude)
	if err != nil {
		return summary, fmt.Errorf("pipeline: collect links: %w", err)
	}
	summary.PagesScanned = res.PagesScanned
	summary.LinksCollected = len(res.URLs)
	summary.Short = res.Short

	total := len(res.URLs)
	logger.Info("parsing product pages", zap.Int("total", total))

	for i, u := range res.URLs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log := logger.With(zap.Int("n", i+1), zap.Int("total", total), zap.String("url", masker.URL(u)))
		log.Info("product")

		prod, err := p.Assembler.Assemble(ctx, u)
		if err != nil {
			metrics.ProductsTotal.WithLabelValues("failed").Inc()
			summary.AddFailure(masker.URL(u))
			log.Warn("product failed", zap.String("err", masker.Scrub(err.Error(), u)))
			continue
		}
		if err := p.Backend.Save(ctx, prod); err != nil {
			metrics.ProductsTotal.WithLabelValues("failed").Inc()
			summary.AddFailure(masker.URL(u))
			log.Error("save failed", zap.String("err", masker.Scrub(err.Error(), u)))
			continue
		}

		metrics.ProductsTotal.WithLabelValues("written").Inc()
		summary.AddProduct(prod)
		log.Info("wrote row", zap.Int("written", summary.ProductsWritten))
	}

	logger.Info("finished",
		zap.Int("written", summary.ProductsWritten),
		zap.Int("failed", summary.ProductsFailed),
	)
	return summary, nil
}
