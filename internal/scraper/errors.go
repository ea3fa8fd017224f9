package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/FranksOps/shelf/internal/metrics"
	"github.com/FranksOps/shelf/pkg/httpclient"
)

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	Code int
	// Challenge names the bot-protection vendor that served the page, if any.
	Challenge string
}

func (e *StatusError) Error() string {
	if e.Challenge != "" {
		return fmt.Sprintf("unexpected status %d %s (%s challenge)", e.Code, http.StatusText(e.Code), e.Challenge)
	}
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// FetchError is returned when every attempt of a fetch failed. Its text never
// contains the real target host.
type FetchError struct {
	// URL is the masked target.
	URL string
	// Endpoint is the display name of the endpoint used last.
	Endpoint string
	Attempts int
	// Err is the last attempt's error, unscrubbed.
	Err error

	msg string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempt(s) failed, last via %s: %s", e.URL, e.Attempts, e.Endpoint, e.msg)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// outcome classifies an attempt error for metrics.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Challenge != "" {
			return metrics.OutcomeChallenge
		}
		return metrics.OutcomeStatus
	}
	if errors.Is(err, httpclient.ErrReadTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
