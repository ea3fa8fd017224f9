package bypass

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectors(t *testing.T) {
	tests := []struct {
		name   string
		res    Response
		source string
	}{
		{
			name: "plain ok page",
			res:  Response{StatusCode: 200, Header: http.Header{"Server": {"nginx"}}, Body: []byte("OK")},
		},
		{
			name:   "qrator header",
			res:    Response{StatusCode: 401, Header: http.Header{"Server": {"QRATOR"}}},
			source: "Qrator",
		},
		{
			name:   "qrator body",
			res:    Response{StatusCode: 403, Body: []byte(`<script src="/__qrator/qauth.js"></script>`)},
			source: "Qrator",
		},
		{
			name:   "ddos-guard header",
			res:    Response{StatusCode: 403, Header: http.Header{"Server": {"ddos-guard"}}},
			source: "DDoS-Guard",
		},
		{
			name:   "cloudflare header",
			res:    Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}, Body: []byte("Access Denied")},
			source: "Cloudflare",
		},
		{
			name:   "cloudflare body",
			res:    Response{StatusCode: 503, Body: []byte("<html>... cf-turnstile ...</html>")},
			source: "Cloudflare",
		},
		{
			name:   "akamai header",
			res:    Response{StatusCode: 403, Header: http.Header{"Server": {"AkamaiGHost"}}},
			source: "Akamai",
		},
		{
			name:   "akamai body",
			res:    Response{StatusCode: 403, Body: []byte("Access Denied... Reference #123.456")},
			source: "Akamai",
		},
		{
			name:   "datadome header",
			res:    Response{StatusCode: 403, Header: http.Header{"X-Datadome": {"protected"}}},
			source: "DataDome",
		},
		{
			name:   "perimeterx body",
			res:    Response{StatusCode: 403, Body: []byte(`<div id="px-captcha"></div>`)},
			source: "PerimeterX",
		},
		{
			name: "signature on a 200 is ignored",
			res:  Response{StatusCode: 200, Body: []byte("cf-turnstile px-captcha")},
		},
		{
			name: "nil header",
			res:  Response{StatusCode: 403},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, source := Analyze(tt.res, DefaultDetectors())
			assert.Equal(t, tt.source != "", detected)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestAnalyze_NoDetectors(t *testing.T) {
	detected, source := Analyze(Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}}, nil)
	assert.False(t, detected)
	assert.Empty(t, source)
}
