// Package stream serves the live observation feed as MJPEG over HTTP.
// Clients connect via GET /api/v1/stream and receive a multipart
// sequence of JPEG frames rendered from the current episode state.
package stream

import (
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/viva-safeland/viva-safeland/internal/metrics"
)

const boundary = "eavframe"

// Source produces the current observation. Implementations must be safe
// for concurrent use.
type Source interface {
	Observation() (*image.RGBA, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (*image.RGBA, error)

func (f SourceFunc) Observation() (*image.RGBA, error) { return f() }

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int     // Max concurrent streams per IP (default: 4).
	FPS                float64 // Frames per second per stream (default: 15).
	JPEGQuality        int     // JPEG encode quality 1-100 (default: 80).
	TrustProxy         bool    // Trust X-Forwarded-For / X-Real-IP.
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 4,
		FPS:                15,
		JPEGQuality:        80,
	}
}

// Handler manages MJPEG streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 4
	}
	if config.FPS <= 0 {
		config.FPS = 15
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		config.JPEGQuality = 80
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// ServeHTTP serves the MJPEG observation stream.
// GET /api/v1/stream?fps=10
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fps := h.config.FPS
	if v := r.URL.Query().Get("fps"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 1 || n > 60 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid fps parameter, must be 1-60"})
			return
		}
		fps = n
	}

	ip := ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"fps", fps,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection; the
	// per-frame deadline is managed by the client writer.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		quality: h.config.JPEGQuality,
		logger:  h.logger,
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			obs, err := h.source.Observation()
			if err != nil {
				// No renderable state yet; keep the connection open.
				metrics.IncStreamErrors("no_observation")
				continue
			}
			if err := c.sendFrame(obs); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
