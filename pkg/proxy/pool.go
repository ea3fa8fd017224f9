package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/FranksOps/shelf/pkg/httpclient"
	"github.com/FranksOps/shelf/pkg/mask"
	"github.com/FranksOps/shelf/pkg/useragent"
)

// DirectName is the display name of the endpoint that uses no proxy.
const DirectName = "DIRECT"

// DefaultAcceptLanguage matches the storefront's primary locale.
const DefaultAcceptLanguage = "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"

// ErrNoEndpoints is returned when a pool would have nothing to pick from.
var ErrNoEndpoints = errors.New("proxy: no endpoints configured")

// TransportFunc builds the round tripper for one endpoint. proxyURL is nil
// for the direct endpoint.
type TransportFunc func(proxyURL *url.URL, userAgent string) (http.RoundTripper, error)

// Endpoint is one egress route: an optional proxy, a long-lived client with
// its own connection pool and cookie jar, and a fixed browser-like header
// set. Endpoints are immutable once built.
type Endpoint struct {
	name     string
	proxyURL *url.URL
	client   *httpclient.Client
	headers  http.Header
}

// NewEndpoint assembles an endpoint from parts. Most callers go through
// NewPool instead.
func NewEndpoint(name string, proxyURL *url.URL, client *httpclient.Client, headers http.Header) *Endpoint {
	return &Endpoint{
		name:     name,
		proxyURL: proxyURL,
		client:   client,
		headers:  headers.Clone(),
	}
}

// Name is the log-safe identity of the endpoint: DIRECT, or the proxy's
// scheme://host:port with credentials removed.
func (e *Endpoint) Name() string { return e.name }

// ProxyURL returns a copy of the proxy URL, or nil for the direct endpoint.
func (e *Endpoint) ProxyURL() *url.URL {
	if e.proxyURL == nil {
		return nil
	}
	u := *e.proxyURL
	return &u
}

// Client returns the endpoint's persistent HTTP client.
func (e *Endpoint) Client() *httpclient.Client { return e.client }

// Headers returns a copy of the endpoint's request headers.
func (e *Endpoint) Headers() http.Header { return e.headers.Clone() }

// UserAgent returns the User-Agent this endpoint presents.
func (e *Endpoint) UserAgent() string { return e.headers.Get("User-Agent") }

// Config defines settings for the endpoint pool.
type Config struct {
	// ProxyURLs lists proxies as scheme://[user:pass@]host:port. A missing
	// scheme defaults to http.
	ProxyURLs []string
	// AllowDirect appends a DIRECT endpoint after the proxies.
	AllowDirect bool
	// UserAgents is cycled in endpoint order. Defaults to useragent.DefaultPool.
	UserAgents *useragent.Pool
	// AcceptLanguage overrides DefaultAcceptLanguage.
	AcceptLanguage string
	MaxRedirects   int
	// NewTransport builds each endpoint's transport. Nil uses a plain
	// http.Transport bound to the proxy.
	NewTransport TransportFunc
}

// Pool hands out endpoints in strict round-robin order across all callers.
type Pool struct {
	endpoints []*Endpoint
	cursor    atomic.Uint64
}

// NewPool builds one endpoint per proxy and, when allowed, a final DIRECT
// endpoint. Each endpoint gets its transport and client exactly once.
func NewPool(cfg Config) (*Pool, error) {
	uas := cfg.UserAgents
	if uas == nil {
		uas = useragent.NewPool(nil)
	}
	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = defaultTransport
	}

	var proxies []*url.URL
	for _, raw := range cfg.ProxyURLs {
		u, err := parseProxy(raw)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, u)
	}
	if cfg.AllowDirect {
		proxies = append(proxies, nil)
	}
	if len(proxies) == 0 {
		return nil, ErrNoEndpoints
	}

	endpoints := make([]*Endpoint, 0, len(proxies))
	for _, u := range proxies {
		ua := uas.Next()

		name := DirectName
		if u != nil {
			name = mask.Proxy(u.String())
		}

		rt, err := newTransport(u, ua)
		if err != nil {
			return nil, fmt.Errorf("proxy: transport for %s: %w", name, err)
		}
		client, err := httpclient.New(httpclient.Config{
			MaxRedirects: cfg.MaxRedirects,
			UseCookieJar: true,
			Transport:    rt,
		})
		if err != nil {
			return nil, fmt.Errorf("proxy: client for %s: %w", name, err)
		}

		endpoints = append(endpoints, &Endpoint{
			name:     name,
			proxyURL: u,
			client:   client,
			headers:  BrowserHeaders(ua, cfg.AcceptLanguage),
		})
	}

	return &Pool{endpoints: endpoints}, nil
}

// NewPoolFromEndpoints wraps prebuilt endpoints, keeping their order.
func NewPoolFromEndpoints(eps ...*Endpoint) (*Pool, error) {
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	copied := make([]*Endpoint, len(eps))
	copy(copied, eps)
	return &Pool{endpoints: copied}, nil
}

// Pick returns the next endpoint. Successive picks cycle through every
// endpoint regardless of which caller made them.
func (p *Pool) Pick() *Endpoint {
	idx := p.cursor.Add(1) - 1
	return p.endpoints[idx%uint64(len(p.endpoints))]
}

// Len reports the number of endpoints.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// Names lists endpoint display names in pool order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.endpoints))
	for i, ep := range p.endpoints {
		names[i] = ep.name
	}
	return names
}

// BrowserHeaders returns the fixed header set an endpoint sends with every
// request.
func BrowserHeaders(userAgent, acceptLanguage string) http.Header {
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguage)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-Fetch-Dest", "document")
	return h
}

// LoadFile reads proxies from a file, expecting one URL per line.
// Lines starting with '#' or empty lines are ignored.
func LoadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("proxy: open list: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("proxy: read list: %w", err)
	}
	return urls, nil
}

func parseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		// default to http if scheme is missing
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("proxy: invalid proxy url %q", mask.Proxy(raw))
	}
	return u, nil
}

func defaultTransport(proxyURL *url.URL, _ string) (http.RoundTripper, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	if proxyURL != nil {
		t.Proxy = http.ProxyURL(proxyURL)
	}
	t.DisableCompression = true
	return t, nil
}
