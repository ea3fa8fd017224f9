package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP exchange the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector examines a response to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectQrator,
		detectDDoSGuard,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the response through the detectors and reports the first
// vendor that matched.
func Analyze(res Response, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

func header(res Response, key string) string {
	if res.Header == nil {
		return ""
	}
	return res.Header.Get(key)
}

func server(res Response) string {
	return strings.ToLower(header(res, "Server"))
}

func bodyHas(res Response, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(res.Body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectQrator looks for the Qrator challenge served by many Russian retail
// sites. Qrator answers 401 or 403 with a JS cookie challenge.
func detectQrator(res Response) (bool, string) {
	if res.StatusCode != http.StatusUnauthorized && res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "qrator") || header(res, "X-Qrator-Request-Id") != "" {
		return true, "Qrator"
	}
	if bodyHas(res, "__qrator", "qauth") {
		return true, "Qrator"
	}
	return false, ""
}

// detectDDoSGuard looks for the DDoS-Guard interstitial.
func detectDDoSGuard(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(res), "ddos-guard") {
		return true, "DDoS-Guard"
	}
	if bodyHas(res, "ddos-guard.net", "__ddg1_") {
		return true, "DDoS-Guard"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res Response) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(res), "cloudflare") {
		return true, "Cloudflare"
	}
	if bodyHas(res, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "akamai") {
		return true, "Akamai"
	}
	// Akamai often returns a generic "Reference #" block page
	if bodyHas(res, "Reference #") && bodyHas(res, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "datadome") {
		return true, "DataDome"
	}
	if header(res, "X-DataDome") != "" || header(res, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyHas(res, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(res, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyHas(res, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
