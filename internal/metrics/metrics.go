package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eav_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eav_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	stepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eav_steps_total",
			Help: "Total number of simulation steps executed.",
		},
	)

	stepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eav_step_duration_seconds",
			Help:    "Wall-clock duration of one simulation step, including view synthesis.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	episodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eav_episodes_total",
			Help: "Total number of episode resets.",
		},
	)

	terminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eav_terminations_total",
			Help: "Episode terminations by reason.",
		},
		[]string{"reason"},
	)

	altitudeMeters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eav_altitude_meters",
			Help: "Current vehicle altitude in meters.",
		},
	)

	frameCursor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eav_frame_cursor",
			Help: "Current source video frame index.",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eav_streams_active",
			Help: "Number of active observation stream connections.",
		},
	)

	streamFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eav_stream_frames_total",
			Help: "Total frames sent over observation streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eav_stream_bytes_total",
			Help: "Total bytes sent over observation streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eav_stream_errors_total",
			Help: "Observation stream errors by cause.",
		},
		[]string{"cause"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(stepDurationSeconds)
	prometheus.MustRegister(episodesTotal)
	prometheus.MustRegister(terminationsTotal)
	prometheus.MustRegister(altitudeMeters)
	prometheus.MustRegister(frameCursor)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamFramesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// IncStreamsActive / DecStreamsActive track open stream connections.
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

// RecordStreamFrame records one frame written to a stream client.
func RecordStreamFrame(bytes int) {
	streamFramesTotal.Inc()
	streamBytesTotal.Add(float64(bytes))
}

// IncStreamErrors counts a stream error by cause.
func IncStreamErrors(cause string) {
	streamErrorsTotal.WithLabelValues(cause).Inc()
}

// RecordStep records one simulation step and the resulting vehicle state.
func RecordStep(duration time.Duration, altitude float64, frameIndex int) {
	stepsTotal.Inc()
	stepDurationSeconds.Observe(duration.Seconds())
	altitudeMeters.Set(altitude)
	frameCursor.Set(float64(frameIndex))
}

// RecordReset records an episode reset and the initial vehicle state.
func RecordReset(altitude float64, frameIndex int) {
	episodesTotal.Inc()
	altitudeMeters.Set(altitude)
	frameCursor.Set(float64(frameIndex))
}

// RecordTermination records an episode termination with its reason.
func RecordTermination(reason string) {
	terminationsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/api/v1/reset":  true,
	"/api/v1/step":   true,
	"/api/v1/render": true,
	"/api/v1/state":  true,
	"/api/v1/video":  true,
	"/api/v1/stream": true,
}

// normalizeRoute collapses unknown paths to a single label so bots and
// scanners cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
