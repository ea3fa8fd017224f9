// Package app builds the crawler's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/FranksOps/shelf/internal/config"
	"github.com/FranksOps/shelf/internal/extract"
	"github.com/FranksOps/shelf/internal/fingerprint"
	"github.com/FranksOps/shelf/internal/pipeline"
	"github.com/FranksOps/shelf/internal/scraper"
	"github.com/FranksOps/shelf/internal/storage"
	"github.com/FranksOps/shelf/internal/storage/csvbackend"
	"github.com/FranksOps/shelf/internal/storage/images"
	"github.com/FranksOps/shelf/internal/storage/jsonbackend"
	"github.com/FranksOps/shelf/internal/storage/postgres"
	"github.com/FranksOps/shelf/internal/storage/sqlite"
	"github.com/FranksOps/shelf/pkg/httpclient"
	"github.com/FranksOps/shelf/pkg/mask"
	"github.com/FranksOps/shelf/pkg/proxy"
	"github.com/FranksOps/shelf/pkg/ratelimit"
	"github.com/FranksOps/shelf/pkg/useragent"
)

// App holds the wired components of one crawl process.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Masker    *mask.Masker
	Pool      *proxy.Pool
	Fetcher   *scraper.Fetcher
	Collector *scraper.Collector
	Assembler *scraper.Assembler
	Backend   storage.Backend
}

// New wires every component. The caller owns the returned App and must Close
// it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	masker := mask.New(mask.Config{
		Disabled: cfg.Mask.Disabled,
		Salt:     cfg.Mask.Salt,
		HashLen:  cfg.Mask.HashLen,
	})

	proxies, err := ProxyList(cfg.Fetch, logger)
	if err != nil {
		return nil, err
	}

	profile := fingerprint.Profile(cfg.Fetch.Fingerprint)
	pool, err := proxy.NewPool(proxy.Config{
		ProxyURLs:      proxies,
		AllowDirect:    cfg.Fetch.AllowDirect,
		UserAgents:     useragent.NewPool(cfg.Fetch.UserAgents),
		AcceptLanguage: cfg.Fetch.AcceptLanguage,
		MaxRedirects:   cfg.Fetch.MaxRedirects,
		NewTransport: func(proxyURL *url.URL, ua string) (http.RoundTripper, error) {
			return fingerprint.Transport(fingerprint.ForUserAgent(profile, ua), fingerprint.Options{
				Proxy:                 proxyURL,
				DialContext:           httpclient.Dialer(nil),
				ResponseHeaderTimeout: cfg.Fetch.ReadTimeout,
			})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build endpoint pool: %w", err)
	}
	logger.Info("endpoint pool ready", zap.Strings("endpoints", pool.Names()))

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Pool: pool,
		Pacer: ratelimit.NewPacer(
			ratelimit.Range{Min: cfg.Fetch.PreWaitMin, Max: cfg.Fetch.PreWaitMax},
			ratelimit.Range{Min: cfg.Fetch.JitterMin, Max: cfg.Fetch.JitterMax},
		),
		MaxAttempts:         cfg.Fetch.MaxAttempts,
		FirstConnectTimeout: cfg.Fetch.FirstConnectTimeout,
		RetryConnectTimeout: cfg.Fetch.RetryConnectTimeout,
		ReadTimeout:         cfg.Fetch.ReadTimeout,
		Masker:              masker,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	collectCfg := scraper.CollectConfig{
		BaseURL:         cfg.Crawl.BaseURL,
		PageParam:       cfg.Crawl.PageParam,
		MaxPages:        cfg.Crawl.MaxPages,
		SkipFailedPages: cfg.Crawl.SkipFailedListing,
	}
	if cfg.Crawl.ProductPattern != "" {
		re, err := regexp.Compile(cfg.Crawl.ProductPattern)
		if err != nil {
			return nil, fmt.Errorf("compile product pattern: %w", err)
		}
		collectCfg.ProductPattern = re
	}
	if cfg.Crawl.RespectRobots {
		robots, err := scraper.NewRobotsTxtAuditor(fetcher, logger)
		if err != nil {
			return nil, fmt.Errorf("build robots auditor: %w", err)
		}
		collectCfg.Robots = robots
		collectCfg.RobotsUserAgent = useragent.NewPool(cfg.Fetch.UserAgents).Next()
	}
	collector, err := scraper.NewCollector(collectCfg, fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("build collector: %w", err)
	}

	asmCfg := scraper.AssemblerConfig{
		Fetcher:        fetcher,
		Extractor:      extract.New(extract.Config{ImageHost: cfg.Crawl.ImageHost}, logger),
		DownloadImages: cfg.Crawl.DownloadImages,
		Masker:         masker,
	}
	if cfg.Crawl.DownloadImages {
		store, err := images.New(cfg.Storage.PicturesDir)
		if err != nil {
			return nil, err
		}
		asmCfg.Images = store
	}
	assembler, err := scraper.NewAssembler(asmCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build assembler: %w", err)
	}

	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Masker:    masker,
		Pool:      pool,
		Fetcher:   fetcher,
		Collector: collector,
		Assembler: assembler,
		Backend:   backend,
	}, nil
}

// Pipeline returns a pipeline over the app's components.
func (a *App) Pipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Collector: a.Collector,
		Assembler: a.Assembler,
		Backend:   a.Backend,
		Masker:    a.Masker,
		Logger:    a.Logger,
	}
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// ProxyList merges configured proxies with the proxies file. A missing file
// is not an error.
func ProxyList(cfg config.FetchConfig, logger *zap.Logger) ([]string, error) {
	proxies := append([]string(nil), cfg.Proxies...)
	if cfg.ProxiesFile == "" {
		return proxies, nil
	}
	fromFile, err := proxy.LoadFile(cfg.ProxiesFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no proxies file", zap.String("path", cfg.ProxiesFile))
		return proxies, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("loaded proxies", zap.Int("count", len(fromFile)), zap.String("path", cfg.ProxiesFile))
	return append(proxies, fromFile...), nil
}

// OpenBackend opens the configured storage backend.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	if cfg.Backend != "postgres" && cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	switch cfg.Backend {
	case "", "tsv":
		b, err = csvbackend.New(cfg.Path)
	case "csv":
		b, err = csvbackend.NewComma(cfg.Path)
	case "ndjson":
		b, err = jsonbackend.New(cfg.Path)
	case "sqlite":
		b, err = sqlite.New(cfg.Path)
	case "postgres":
		b, err = postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}
