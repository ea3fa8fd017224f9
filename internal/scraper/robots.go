package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const defaultRobotsCacheSize = 64

// PageFetcher is the part of Fetcher the crawl components depend on.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string, opts ...FetchOption) (*Page, error)
}

// RobotsTxtAuditor manages robots.txt fetching and enforcement. Parsed
// files are cached per origin; a failed fetch is cached as "allow all".
type RobotsTxtAuditor struct {
	fetcher PageFetcher
	logger  *zap.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, *robotstxt.RobotsData]
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher PageFetcher, logger *zap.Logger) (*RobotsTxtAuditor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, *robotstxt.RobotsData](defaultRobotsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("robots cache: %w", err)
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   cache,
	}, nil
}

// IsAllowed determines if the given URL is allowed by the host's robots.txt for the provided User-Agent.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := r.getOrFetch(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}

	group := data.FindGroup(userAgent)
	return group.Test(u.EscapedPath()), nil
}

func (r *RobotsTxtAuditor) getOrFetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache.Get(origin); ok {
		return data
	}

	data, err := r.fetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, defaulting to allow", zap.Error(err))
	}
	r.cache.Add(origin, data)
	return data
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	page, err := r.fetcher.Fetch(ctx, origin+"/robots.txt", WithMaxAttempts(1))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
			// A missing robots.txt permits everything.
			return nil, nil
		}
		return nil, err
	}

	parsed, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return parsed, nil
}
