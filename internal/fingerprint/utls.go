package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/shelf/pkg/useragent"
	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
	// ProfileAuto picks the profile matching the endpoint's User-Agent.
	ProfileAuto Profile = "auto"
)

// Options tune the transport built for one egress endpoint.
type Options struct {
	// Proxy is fixed for the lifetime of the transport; nil means direct.
	Proxy *url.URL
	// DialContext replaces the default TCP dialer. Endpoints use it to apply
	// a per-attempt connect timeout carried in the request context.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	// ResponseHeaderTimeout bounds the wait for response headers.
	ResponseHeaderTimeout time.Duration
}

// ForUserAgent resolves ProfileAuto to the uTLS profile of the browser the
// User-Agent claims to be, so the TLS handshake and the header agree.
func ForUserAgent(p Profile, ua string) Profile {
	if p != ProfileAuto {
		return p
	}
	switch useragent.Family(ua) {
	case useragent.BrowserChrome:
		return ProfileChrome
	case useragent.BrowserFirefox:
		return ProfileFirefox
	case useragent.BrowserSafari:
		return ProfileSafari
	default:
		return ProfileGo
	}
}

// Transport returns an http.RoundTripper configured with the specified
// TLS fingerprint profile. If the profile is "go", it returns a standard
// http.Transport. Otherwise, it wraps http.Transport to use utls.UClient.
//
// The transport never consults proxy environment variables: an endpoint is
// either direct or bound to exactly one proxy.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if opts.Proxy != nil {
		transport.Proxy = http.ProxyURL(opts.Proxy)
	}
	if opts.DialContext != nil {
		transport.DialContext = opts.DialContext
	}
	if opts.ResponseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	}
	// Endpoints send their own Accept-Encoding and decode bodies themselves.
	transport.DisableCompression = true

	if p == ProfileGo {
		return transport, nil
	}

	var clientHelloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		clientHelloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		clientHelloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		clientHelloID = utls.HelloIOS_Auto
	case ProfileRandom:
		clientHelloID = utls.HelloRandomizedALPN
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	// http.Transport cannot speak h2 over a custom DialTLSContext connection.
	transport.ForceAttemptHTTP2 = false

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr // fallback if no port
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host}, utls.HelloCustom)
		if spec, ok := http1Spec(clientHelloID); ok {
			if err := uConn.ApplyPreset(spec); err != nil {
				_ = tcpConn.Close()
				return nil, fmt.Errorf("fingerprint: apply preset: %w", err)
			}
		} else {
			uConn = utls.UClient(tcpConn, &utls.Config{ServerName: host}, clientHelloID)
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

// http1Spec returns the parroted hello for id with ALPN narrowed to
// http/1.1. Randomized profiles have no static spec and report false.
func http1Spec(id utls.ClientHelloID) (*utls.ClientHelloSpec, bool) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, false
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, true
}
