package useragent

import (
	"strings"
	"sync/atomic"
)

// DefaultPool is the set of desktop browser signatures handed out to egress
// endpoints. Each endpoint keeps its User-Agent for the whole process.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Browser is the coarse browser family a User-Agent claims to be.
type Browser string

const (
	BrowserChrome  Browser = "chrome"
	BrowserFirefox Browser = "firefox"
	BrowserSafari  Browser = "safari"
	BrowserUnknown Browser = "unknown"
)

// Pool hands out User-Agents in a fixed rotation.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool creates a new User-Agent pool. If the provided slice is empty,
// it falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas: copied,
	}
}

// Next returns the next User-Agent in round-robin order, starting with the
// first entry. It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Len reports the number of signatures in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}

// All returns a copy of all User-Agents currently in the pool.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}

// Family guesses the browser family from a User-Agent string. Order matters:
// Chromium builds also advertise "Safari", and Edge advertises "Chrome".
func Family(ua string) Browser {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return BrowserFirefox
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "Chromium/"):
		return BrowserChrome
	case strings.Contains(ua, "Safari/"):
		return BrowserSafari
	default:
		return BrowserUnknown
	}
}
