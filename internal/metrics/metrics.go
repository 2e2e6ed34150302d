// Package metrics exposes Prometheus instrumentation for the practice client.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	framesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liplearn_frames_captured_total",
		Help: "Frames appended to a recording buffer",
	}, []string{"mode"})

	recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liplearn_recordings_total",
		Help: "Recordings by outcome",
	}, []string{"outcome"}) // submitted, cancelled, empty, failed

	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liplearn_predictions_total",
		Help: "Prediction requests by mode and status",
	}, []string{"mode", "status"})

	predictionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liplearn_prediction_latency_seconds",
		Help:    "Prediction round-trip latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"mode"})

	landmarkProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liplearn_landmark_probes_total",
		Help: "Landmark probes by status",
	}, []string{"status"}) // ok, miss, error, skipped

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "liplearn_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	progressSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liplearn_progress_syncs_total",
		Help: "Progress synchronisations by direction and status",
	}, []string{"direction", "status"})
)

// FrameCaptured counts one buffered frame.
func FrameCaptured(mode string) {
	framesCaptured.WithLabelValues(mode).Inc()
}

// RecordingFinished counts a recording outcome.
func RecordingFinished(outcome string) {
	recordings.WithLabelValues(outcome).Inc()
}

// PredictionDone records a prediction request and its latency.
func PredictionDone(mode string, started time.Time, err error) {
	predictionLatency.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	predictions.WithLabelValues(mode, status(err)).Inc()
}

// LandmarkProbe counts a probe result.
func LandmarkProbe(result string) {
	landmarkProbes.WithLabelValues(result).Inc()
}

// BreakerState publishes a breaker state value.
func BreakerState(service string, state int) {
	breakerState.WithLabelValues(service).Set(float64(state))
}

// ProgressSync counts a progress sync in the given direction ("pull" or "push").
func ProgressSync(direction string, err error) {
	progressSyncs.WithLabelValues(direction, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener started")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
