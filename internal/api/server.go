// Package api exposes the episode over HTTP in a request/response shape
// mirroring the reset/step/render kernel operations.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/viva-safeland/viva-safeland/internal/auth"
	"github.com/viva-safeland/viva-safeland/internal/episode"
	"github.com/viva-safeland/viva-safeland/internal/frame"
	"github.com/viva-safeland/viva-safeland/internal/health"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
	"github.com/viva-safeland/viva-safeland/internal/metrics"
	"github.com/viva-safeland/viva-safeland/internal/stream"
)

// Server holds the HTTP server and its dependencies. The episode is a
// single shared instance; the mutex serializes reset/step/render against
// concurrent API calls and the stream.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	mu      sync.Mutex
	ep      *episode.Episode
	library *frame.Library
	build   func(frame.Provider) (*episode.Episode, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Addr   string
	Auth   auth.Config
	Stream stream.Config
}

// NewServer creates a configured HTTP server around an episode. build
// constructs a replacement episode when the video source is swapped.
func NewServer(cfg Config, ep *episode.Episode, library *frame.Library, build func(frame.Provider) (*episode.Episode, error), logger *slog.Logger) *Server {
	s := &Server{
		logger:  logger,
		ep:      ep,
		library: library,
		build:   build,
	}

	streamHandler := stream.NewHandler(stream.SourceFunc(s.observation), cfg.Stream, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", health.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", health.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/step", s.handleStep).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/render", s.handleRender).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/video", s.handleVideoSwap).Methods(http.MethodPost)
	r.Handle("/api/v1/stream", streamHandler).Methods(http.MethodGet)

	// Build middleware chain: metrics -> logging -> auth -> router.
	var handler http.Handler = r
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// observation renders the current episode state for the MJPEG stream.
func (s *Server) observation() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Render()
}

type resetRequest struct {
	Pose *kinematics.Pose `json:"pose,omitempty"`
}

type stepRequest struct {
	Action kinematics.Action `json:"action"`
}

type stepResponse struct {
	Terminated bool         `json:"terminated"`
	Info       episode.Info `json:"info"`
}

type stateResponse struct {
	State string       `json:"state"`
	Info  episode.Info `json:"info"`
}

// handleReset starts a new episode. An optional JSON body fixes the
// initial pose; an empty body samples a random one.
// POST /api/v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	s.mu.Lock()
	_, info, err := s.ep.Reset(episode.ResetOptions{Pose: req.Pose})
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleStep applies one action and advances the episode.
// POST /api/v1/step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.mu.Lock()
	_, terminated, info, err := s.ep.Step(req.Action)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, episode.ErrInvalidState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stepResponse{Terminated: terminated, Info: info})
}

// handleRender returns the current observation as PNG without advancing
// the simulation.
// GET /api/v1/render
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	obs, err := s.ep.Render()
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, episode.ErrInvalidState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, obs); err != nil {
		s.logger.Warn("png encode failed", "error", err)
	}
}

// handleState reports the current lifecycle state and vehicle info.
// GET /api/v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	state := s.ep.State()
	info := s.ep.Info()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, stateResponse{State: state.String(), Info: info})
}

type videoSwapRequest struct {
	Dir string  `json:"dir"`
	FPS float64 `json:"fps,omitempty"`
}

// handleVideoSwap replaces the active video source with a new frame
// directory and rebuilds the episode around it. The old episode is
// discarded; clients must reset before stepping again.
// POST /api/v1/video
func (s *Server) handleVideoSwap(w http.ResponseWriter, r *http.Request) {
	var req videoSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dir == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"dir\": \"<frame directory>\"}")
		return
	}

	if req.FPS <= 0 {
		req.FPS = 30
	}
	provider, err := frame.NewDir(req.Dir, req.FPS, s.logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("open video source: %v", err))
		return
	}

	ep, err := s.build(provider)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("rebuild episode: %v", err))
		return
	}

	s.mu.Lock()
	s.library.Swap(provider)
	s.ep = ep
	s.mu.Unlock()

	s.logger.Info("video source swapped", "dir", req.Dir, "frames", provider.FrameCount())
	writeJSON(w, http.StatusOK, map[string]any{"frames": provider.FrameCount(), "fps": provider.FPS()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so MJPEG streaming survives the
// logging middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer's
// deadline controls.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
