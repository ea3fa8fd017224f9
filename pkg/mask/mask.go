// Package mask hides crawl targets and proxy credentials from log output.
//
// A target host is replaced by a salted, truncated SHA-256 digest so log lines
// from different runs can still be correlated without naming the site:
//
//	https://host#3fa9c0d1e2/goods/syrniki-123.html
package mask

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	// DefaultSalt is used when no salt is configured.
	DefaultSalt = "vv_mask_salt"
	// DefaultHashLen is the number of hex characters kept from the digest.
	DefaultHashLen = 10
)

// Config controls how identities are masked.
type Config struct {
	// Disabled turns masking off; URLs are then logged verbatim.
	Disabled bool
	Salt     string
	HashLen  int
}

// Masker replaces hostnames with stable one-way identities. It is safe for
// concurrent use.
type Masker struct {
	disabled bool
	salt     string
	hashLen  int
}

// New creates a Masker. Zero config values fall back to DefaultSalt and
// DefaultHashLen.
func New(cfg Config) *Masker {
	if cfg.Salt == "" {
		cfg.Salt = DefaultSalt
	}
	if cfg.HashLen <= 0 || cfg.HashLen > sha256.Size*2 {
		cfg.HashLen = DefaultHashLen
	}
	return &Masker{
		disabled: cfg.Disabled,
		salt:     cfg.Salt,
		hashLen:  cfg.HashLen,
	}
}

// HostID returns the masked identity for a network location ("host[:port]").
func (m *Masker) HostID(netloc string) string {
	sum := sha256.Sum256([]byte(m.salt + "|" + netloc))
	return "host#" + hex.EncodeToString(sum[:])[:m.hashLen]
}

// URL masks a target URL as scheme://host#<hex>path, keeping the path as it
// was written. The query string and fragment are dropped; an empty path
// becomes "/".
func (m *Masker) URL(raw string) string {
	if m.disabled {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		// Never echo something we could not take apart.
		return m.HostID(raw)
	}
	// RawPath is set only when the escaping as written is not the canonical
	// one; otherwise EscapedPath reproduces it.
	path := u.RawPath
	if path == "" {
		path = u.EscapedPath()
	}
	if path == "" {
		path = "/"
	}
	return u.Scheme + "://" + m.HostID(netloc(u)) + path
}

// Scrub replaces every occurrence of rawURL's host in msg with its masked
// identity. It is used on error texts, which often quote the target.
func (m *Masker) Scrub(msg, rawURL string) string {
	if m.disabled {
		return msg
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return msg
	}
	id := m.HostID(netloc(u))
	msg = strings.ReplaceAll(msg, rawURL, m.URL(rawURL))
	msg = strings.ReplaceAll(msg, netloc(u), id)
	if h := u.Hostname(); h != "" {
		msg = strings.ReplaceAll(msg, h, id)
	}
	return msg
}

// Proxy renders a proxy URL as scheme://host[:port], stripping any
// credentials. It does not hash the proxy host.
func Proxy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.LastIndex(raw, "@"); i >= 0 {
			return raw[i+1:]
		}
		return raw
	}
	return u.Scheme + "://" + u.Host
}

// netloc mirrors the authority component as written: userinfo@host:port.
func netloc(u *url.URL) string {
	if u.User != nil {
		return u.User.String() + "@" + u.Host
	}
	return u.Host
}
