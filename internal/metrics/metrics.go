package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch attempt outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "status"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeChallenge = "challenge"
)

var (
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_fetch_attempts_total",
			Help: "Fetch attempts, labeled by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelf_fetch_duration_seconds",
			Help:    "Duration of single fetch attempts in seconds, excluding pacing",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_fetch_bytes_total",
			Help: "Decoded body bytes downloaded, labeled by endpoint",
		},
		[]string{"endpoint"},
	)

	FetchExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelf_fetch_exhausted_total",
			Help: "Fetches that failed on every attempt",
		},
	)

	PacingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelf_pacing_delay_seconds",
			Help:    "Randomized delay applied before each fetch attempt",
			Buckets: []float64{0.5, 1, 2, 3, 4, 5},
		},
	)

	ListingPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_listing_pages_total",
			Help: "Listing pages scanned, labeled by status",
		},
		[]string{"status"},
	)

	ProductsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_products_total",
			Help: "Product pages processed, labeled by status",
		},
		[]string{"status"},
	)

	FieldMissingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_field_missing_total",
			Help: "Extracted records with a field left empty, labeled by field",
		},
		[]string{"field"},
	)
)

// RecordAttempt updates the per-attempt fetch metrics.
func RecordAttempt(endpoint, outcome string, d time.Duration, bytes int) {
	FetchAttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
	FetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if bytes > 0 {
		FetchBytesTotal.WithLabelValues(endpoint).Add(float64(bytes))
	}
}

// RecordMissing counts each named field as missing once.
func RecordMissing(fields ...string) {
	for _, f := range fields {
		FieldMissingTotal.WithLabelValues(f).Inc()
	}
}

// Router exposes /metrics and /healthz.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// NewServer prepares a metrics server on the given port.
func NewServer(port int) *Server {
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		// Suppress the error from intentional shutdown
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return <-errCh
}
