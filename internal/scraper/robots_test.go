package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned pages keyed by URL and records every call.
type fakeFetcher struct {
	pages    map[string]string
	errs     map[string]error
	calls    []string
	referers map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, targetURL string, opts ...FetchOption) (*Page, error) {
	f.calls = append(f.calls, targetURL)
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.referer != "" {
		if f.referers == nil {
			f.referers = make(map[string]string)
		}
		f.referers[targetURL] = o.referer
	}
	if err, ok := f.errs[targetURL]; ok {
		return nil, err
	}
	body, ok := f.pages[targetURL]
	if !ok {
		return nil, &FetchError{URL: targetURL, Endpoint: "DIRECT", Attempts: 1, Err: &StatusError{Code: 404}, msg: "not found"}
	}
	return &Page{StatusCode: 200, Body: []byte(body), FinalURL: targetURL, Endpoint: "DIRECT", Attempt: 1}, nil
}

func (f *fakeFetcher) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestRobotsTxtAuditor_IsAllowed(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]string{
		"https://shop.example/robots.txt": `
User-agent: *
Disallow: /admin/
Allow: /admin/public/

User-agent: BadBot
Disallow: /
`,
	}}

	auditor, err := NewRobotsTxtAuditor(ff, nil)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		url   string
		ua    string
		allow bool
	}{
		{"https://shop.example/public-page", "GoodBot", true},
		{"https://shop.example/admin/secret", "GoodBot", false},
		{"https://shop.example/admin/public/index.html", "GoodBot", true},
		{"https://shop.example/public-page", "BadBot", false},
	}
	for _, tt := range tests {
		allowed, err := auditor.IsAllowed(ctx, tt.url, tt.ua)
		require.NoError(t, err)
		assert.Equal(t, tt.allow, allowed, "%s as %s", tt.url, tt.ua)
	}

	assert.Equal(t, 1, ff.count("https://shop.example/robots.txt"), "robots.txt is fetched once per origin")
}

func TestRobotsTxtAuditor_MissingOrFailingAllows(t *testing.T) {
	ff := &fakeFetcher{errs: map[string]error{
		"https://down.example/robots.txt": errors.New("connection refused"),
	}}
	auditor, err := NewRobotsTxtAuditor(ff, nil)
	require.NoError(t, err)

	allowed, err := auditor.IsAllowed(context.Background(), "https://nofile.example/goods/a-1.html", "*")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = auditor.IsAllowed(context.Background(), "https://down.example/goods/a-1.html", "*")
	require.NoError(t, err)
	assert.True(t, allowed)

	_, _ = auditor.IsAllowed(context.Background(), "https://down.example/goods/b-2.html", "*")
	assert.Equal(t, 1, ff.count("https://down.example/robots.txt"), "failures are cached too")
}

func TestRobotsTxtAuditor_InvalidURL(t *testing.T) {
	auditor, err := NewRobotsTxtAuditor(&fakeFetcher{}, nil)
	require.NoError(t, err)
	_, err = auditor.IsAllowed(context.Background(), "://bad", "*")
	assert.Error(t, err)
}
