package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/shelf/internal/bypass"
	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/FranksOps/shelf/pkg/httpclient"
	"github.com/FranksOps/shelf/pkg/mask"
	"github.com/FranksOps/shelf/pkg/proxy"
	"github.com/FranksOps/shelf/pkg/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults for FetchConfig zero values.
const (
	DefaultMaxAttempts         = 3
	DefaultFirstConnectTimeout = 12 * time.Second
	DefaultRetryConnectTimeout = 6 * time.Second
	DefaultReadTimeout         = 15 * time.Second
)

// FetchConfig configures the resilient fetcher.
type FetchConfig struct {
	Pool  *proxy.Pool
	Pacer *ratelimit.Pacer

	MaxAttempts int
	// FirstConnectTimeout applies to attempt 1, RetryConnectTimeout to the rest.
	FirstConnectTimeout time.Duration
	RetryConnectTimeout time.Duration
	// ReadTimeout bounds each stall while reading the response body.
	ReadTimeout time.Duration

	Masker *mask.Masker
	// Detectors annotate failed responses with the bot-protection vendor.
	// Nil uses bypass.DefaultDetectors.
	Detectors []bypass.Detector
}

// Page is the outcome of a successful fetch.
type Page struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	// FinalURL is the URL after redirects.
	FinalURL string
	// Endpoint is the display name of the endpoint that served the page.
	Endpoint string
	Attempt  int
	Duration time.Duration
}

// FetchOption adjusts a single Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	referer     string
	maxAttempts int
}

// WithReferer sends a Referer header on every attempt.
func WithReferer(referer string) FetchOption {
	return func(o *fetchOptions) { o.referer = referer }
}

// WithMaxAttempts overrides the configured attempt budget for one call.
func WithMaxAttempts(n int) FetchOption {
	return func(o *fetchOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// Fetcher performs GET requests across a rotating endpoint pool with
// randomized pacing, per-attempt timeouts and masked logging.
type Fetcher struct {
	config FetchConfig
	logger *zap.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig, logger *zap.Logger) (*Fetcher, error) {
	if cfg.Pool == nil || cfg.Pool.Len() == 0 {
		return nil, proxy.ErrNoEndpoints
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.FirstConnectTimeout <= 0 {
		cfg.FirstConnectTimeout = DefaultFirstConnectTimeout
	}
	if cfg.RetryConnectTimeout <= 0 {
		cfg.RetryConnectTimeout = DefaultRetryConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Masker == nil {
		cfg.Masker = mask.New(mask.Config{})
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{config: cfg, logger: logger}, nil
}

// Fetch GETs targetURL, retrying on a freshly picked endpoint after any
// network error, timeout or non-2xx status. It returns the first successful
// page, or a *FetchError once the attempt budget is spent.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, opts ...FetchOption) (*Page, error) {
	o := fetchOptions{maxAttempts: f.config.MaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	masked := f.config.Masker.URL(targetURL)
	logger := f.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("url", masked),
	)

	var (
		lastErr error
		lastEp  string
		tried   int
	)
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		ep := f.config.Pool.Pick()
		lastEp = ep.Name()
		tried = attempt

		connect := f.config.RetryConnectTimeout
		if attempt == 1 {
			connect = f.config.FirstConnectTimeout
		}

		delay, err := f.config.Pacer.Wait(ctx)
		if err != nil {
			lastErr = err
			break
		}
		metrics.PacingSeconds.Observe((delay.PreWait + delay.Jitter).Seconds())

		logger.Debug("GET attempt",
			zap.Int("attempt", attempt),
			zap.String("via", ep.Name()),
			zap.Duration("connect_timeout", connect),
			zap.Duration("read_timeout", f.config.ReadTimeout),
			zap.Int64("prewait_ms", delay.PreWait.Milliseconds()),
			zap.Int64("jitter_ms", delay.Jitter.Milliseconds()),
		)

		page, err := f.attempt(ctx, ep, targetURL, connect, o.referer)
		if page != nil {
			metrics.RecordAttempt(ep.Name(), outcome(err), page.Duration, len(page.Body))
		}
		if err == nil {
			page.Attempt = attempt
			logger.Info("OK",
				zap.Int("attempt", attempt),
				zap.String("via", ep.Name()),
				zap.Int("status", page.StatusCode),
				zap.Int("size", len(page.Body)),
			)
			return page, nil
		}
		if page == nil {
			metrics.RecordAttempt(ep.Name(), outcome(err), 0, 0)
		}

		lastErr = err
		logger.Warn("FAIL",
			zap.Int("attempt", attempt),
			zap.String("via", ep.Name()),
			zap.String("exc", fmt.Sprintf("%T", err)),
			zap.String("error", f.config.Masker.Scrub(err.Error(), targetURL)),
		)

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	metrics.FetchExhaustedTotal.Inc()
	return nil, &FetchError{
		URL:      masked,
		Endpoint: lastEp,
		Attempts: tried,
		Err:      lastErr,
		msg:      f.config.Masker.Scrub(lastErr.Error(), targetURL),
	}
}

// attempt performs one GET through ep. On a completed exchange with a bad
// status it returns both the page and a *StatusError.
func (f *Fetcher) attempt(ctx context.Context, ep *proxy.Endpoint, targetURL string, connect time.Duration, referer string) (*Page, error) {
	actx, cancel := context.WithCancel(httpclient.WithConnectTimeout(ctx, connect))
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = ep.Headers()
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	start := time.Now()
	resp, err := ep.Client().Do(actx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	r, err := httpclient.DecodeBody(resp)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadAll(r, f.config.ReadTimeout, cancel)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &Page{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
		FinalURL:   finalURL,
		Endpoint:   ep.Name(),
		Duration:   time.Since(start),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, vendor := bypass.Analyze(bypass.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}, f.config.Detectors)
		return page, &StatusError{Code: resp.StatusCode, Challenge: vendor}
	}
	return page, nil
}
