package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ErrReadTimeout is returned when a response body stalls longer than the
// configured idle read timeout.
var ErrReadTimeout = errors.New("httpclient: body read timed out")

// DecodeBody wraps resp.Body with a decoder matching its Content-Encoding.
// Endpoints advertise "gzip, deflate, br" themselves, which switches off the
// transport's transparent gzip handling.
func DecodeBody(resp *http.Response) (io.Reader, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: gzip: %w", err)
		}
		return r, nil
	case "deflate":
		r, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: deflate: %w", err)
		}
		return r, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("httpclient: unsupported content encoding %q", enc)
	}
}

// ReadAll drains r, calling cancel when no bytes arrive for idle. cancel is
// expected to abort the request that r belongs to. A stall is reported as
// ErrReadTimeout.
func ReadAll(r io.Reader, idle time.Duration, cancel context.CancelFunc) ([]byte, error) {
	if idle <= 0 {
		return io.ReadAll(r)
	}

	var fired atomic.Bool
	timer := time.AfterFunc(idle, func() {
		fired.Store(true)
		cancel()
	})
	defer timer.Stop()

	body, err := io.ReadAll(&idleReader{r: r, timer: timer, idle: idle})
	if err != nil && fired.Load() {
		return body, fmt.Errorf("%w after %s idle", ErrReadTimeout, idle)
	}
	return body, err
}

type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	return n, err
}
