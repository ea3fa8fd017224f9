package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Defaults for CollectConfig zero values.
const (
	DefaultBaseURL   = "https://vkusvill.ru/goods/gotovaya-eda/"
	DefaultPageParam = "PAGEN_1"
	DefaultMaxPages  = 60
)

// DefaultProductPattern matches product detail pages such as
// /goods/syrniki-so-smetanoy-12345.html.
var DefaultProductPattern = regexp.MustCompile(`/goods/[^/]+-\d+\.html$`)

// CollectConfig provides parameters for listing-page link collection.
type CollectConfig struct {
	// BaseURL is page 1 of the category listing.
	BaseURL string
	// PageParam is the query parameter that selects listing page N > 1.
	PageParam string
	MaxPages  int
	// ProductPattern selects product links among the listing anchors.
	ProductPattern *regexp.Regexp
	// SkipFailedPages keeps scanning when a listing page cannot be fetched
	// instead of aborting the collection.
	SkipFailedPages bool
	// Robots, when set, drops product URLs disallowed for RobotsUserAgent.
	Robots          *RobotsTxtAuditor
	RobotsUserAgent string
}

// CollectResult is the ordered outcome of a collection.
type CollectResult struct {
	URLs         []string
	PagesScanned int
	// Short reports that a positive target was not reached.
	Short bool
}

// Collector walks paginated listing pages and gathers product URLs.
type Collector struct {
	cfg     CollectConfig
	base    *url.URL
	fetcher PageFetcher
	logger  *zap.Logger
}

// NewCollector validates cfg and fills in defaults.
func NewCollector(cfg CollectConfig, fetcher PageFetcher, logger *zap.Logger) (*Collector, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageParam == "" {
		cfg.PageParam = DefaultPageParam
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.ProductPattern == nil {
		cfg.ProductPattern = DefaultProductPattern
	}
	if cfg.RobotsUserAgent == "" {
		cfg.RobotsUserAgent = "*"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("collector: invalid base url %q", cfg.BaseURL)
	}

	return &Collector{
		cfg:     cfg,
		base:    base,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// PageURL returns the listing URL for page n (1-based).
func (c *Collector) PageURL(n int) string {
	if n <= 1 {
		return c.base.String()
	}
	u := *c.base
	q := u.Query()
	q.Set(c.cfg.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// Collect scans listing pages 1..MaxPages and returns product URLs page by
// page, each page's links in sorted order, skipping duplicates and anything in exclude. A positive
// target stops the scan once reached and caps the result at exactly target
// URLs. A listing page that cannot be fetched aborts with its *FetchError
// unless SkipFailedPages is set.
func (c *Collector) Collect(ctx context.Context, target int, exclude map[string]struct{}) (*CollectResult, error) {
	seen := make(map[string]struct{})
	res := &CollectResult{}

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		listing := c.PageURL(page)
		p, err := c.fetcher.Fetch(ctx, listing)
		if err != nil {
			metrics.ListingPagesTotal.WithLabelValues("failed").Inc()
			var fe *FetchError
			if c.cfg.SkipFailedPages && errors.As(err, &fe) && ctx.Err() == nil {
				c.logger.Warn("listing page skipped", zap.Int("page", page), zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		metrics.ListingPagesTotal.WithLabelValues("ok").Inc()
		res.PagesScanned++

		found := c.extractLinks(p.Body)
		fresh := 0
		for _, link := range found {
			if _, dup := seen[link]; dup {
				continue
			}
			if _, skip := exclude[link]; skip {
				continue
			}
			if !c.allowed(ctx, link) {
				continue
			}
			seen[link] = struct{}{}
			res.URLs = append(res.URLs, link)
			fresh++
		}

		c.logger.Info("listing page",
			zap.Int("page", page),
			zap.Int("found", len(found)),
			zap.Int("new", fresh),
			zap.Int("total_new", len(res.URLs)),
		)

		if target > 0 && len(res.URLs) >= target {
			c.logger.Info("target reached",
				zap.Int("collected", len(res.URLs)),
				zap.Int("target", target),
				zap.Int("page", page),
			)
			break
		}
	}

	if target > 0 {
		if len(res.URLs) < target {
			res.Short = true
			c.logger.Warn("collected fewer links than target",
				zap.Int("collected", len(res.URLs)),
				zap.Int("target", target),
				zap.Int("pages_scanned", res.PagesScanned),
				zap.Int("limit_pages", c.cfg.MaxPages),
			)
		} else {
			res.URLs = res.URLs[:target]
		}
	}

	c.logger.Info("product links collected", zap.Int("total", len(res.URLs)))
	return res, nil
}

func (c *Collector) allowed(ctx context.Context, link string) bool {
	if c.cfg.Robots == nil {
		return true
	}
	ok, err := c.cfg.Robots.IsAllowed(ctx, link, c.cfg.RobotsUserAgent)
	if err != nil {
		return true
	}
	if !ok {
		c.logger.Debug("url blocked by robots.txt", zap.String("path", pathOf(link)))
	}
	return ok
}

// extractLinks returns the distinct product URLs of a listing page, resolved
// against the base URL and sorted.
func (c *Collector) extractLinks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	dedup := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := c.base.ResolveReference(u)
		resolved.Fragment = ""
		link := resolved.String()
		if !c.cfg.ProductPattern.MatchString(link) {
			return
		}
		if _, ok := dedup[link]; ok {
			return
		}
		dedup[link] = struct{}{}
		links = append(links, link)
	})
	sort.Strings(links)
	return links
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
