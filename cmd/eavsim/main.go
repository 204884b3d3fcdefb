package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/viva-safeland/viva-safeland/internal/api"
	"github.com/viva-safeland/viva-safeland/internal/auth"
	"github.com/viva-safeland/viva-safeland/internal/episode"
	"github.com/viva-safeland/viva-safeland/internal/frame"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
	"github.com/viva-safeland/viva-safeland/internal/stream"
	"github.com/viva-safeland/viva-safeland/internal/view"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("EAVSIM_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	provider, err := loadProvider(logger)
	if err != nil {
		logger.Error("invalid video source configuration", "error", err)
		os.Exit(1)
	}
	library := frame.NewLibrary(provider)

	epCfg := loadEpisodeConfig(logger)
	build := func(p frame.Provider) (*episode.Episode, error) {
		cfg := epCfg
		// Resolution follows the provider; altitude-bound overrides stay.
		cfg.View.FrameWidth = 0
		cfg.View.FrameHeight = 0
		return episode.New(cfg, p, logger)
	}

	ep, err := build(provider)
	if err != nil {
		logger.Error("episode construction failed", "error", err)
		os.Exit(1)
	}

	streamCfg := loadStreamConfig(logger)
	srv := api.NewServer(api.Config{
		Addr:   addr,
		Auth:   authCfg,
		Stream: streamCfg,
	}, ep, library, build, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"frames", provider.FrameCount(),
			"video_fps", provider.FPS(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("EAVSIM_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("EAVSIM_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("EAVSIM_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("EAVSIM_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadProvider selects the video frame source. EAVSIM_VIDEO_DIR points at
// a directory of numbered PNG/JPEG frames (with optional sibling .SRT for
// the initial altitude); EAVSIM_VIDEO_STILL repeats a single image as an
// endless video; when neither is set, a synthetic solid background is
// used so the service can come up without assets.
func loadProvider(logger *slog.Logger) (frame.Provider, error) {
	fps := envFloat(logger, "EAVSIM_VIDEO_FPS", 30, 1, 240)

	if dir := os.Getenv("EAVSIM_VIDEO_DIR"); dir != "" {
		return frame.NewDir(dir, fps, logger)
	}

	if path := os.Getenv("EAVSIM_VIDEO_STILL"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening still image: %w", err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding still image %s: %w", path, err)
		}
		count := envInt(logger, "EAVSIM_SYNTH_FRAMES", 900, 1, 1<<20)
		return frame.NewStill(img, count, fps), nil
	}

	logger.Warn("EAVSIM_VIDEO_DIR not set, using synthetic background")
	w := envInt(logger, "EAVSIM_SYNTH_WIDTH", 1920, 64, 8192)
	h := envInt(logger, "EAVSIM_SYNTH_HEIGHT", 1080, 64, 8192)
	count := envInt(logger, "EAVSIM_SYNTH_FRAMES", 900, 1, 1<<20)
	return frame.NewSolid(w, h, count, fps, color.RGBA{R: 104, G: 124, B: 84, A: 255}), nil
}

func loadEpisodeConfig(logger *slog.Logger) episode.Config {
	kin := kinematics.DefaultConfig()
	kin.MinAltitude = envFloat(logger, "EAVSIM_MIN_ALTITUDE", kin.MinAltitude, 0, 1000)
	kin.MaxAltitude = envFloat(logger, "EAVSIM_MAX_ALTITUDE", kin.MaxAltitude, kin.MinAltitude, 10000)
	kin.Damping = envFloat(logger, "EAVSIM_DAMPING", 0, 0, 0.99)

	// Frame size is learned from the provider at construction.
	v := view.DefaultConfig(0, 0)
	v.OutputWidth = envInt(logger, "EAVSIM_OUTPUT_WIDTH", v.OutputWidth, 32, 4096)
	v.OutputHeight = envInt(logger, "EAVSIM_OUTPUT_HEIGHT", v.OutputHeight, 32, 4096)
	if os.Getenv("EAVSIM_SCALE_LAW") == string(view.LawFOV) {
		v.Law = view.LawFOV
	}

	cfg := episode.Config{
		ControlFPS: envFloat(logger, "EAVSIM_CONTROL_FPS", 30, 1, 240),
		MaxSteps:   envInt(logger, "EAVSIM_MAX_STEPS", 0, 0, 1<<30),
		CrashSteps: envInt(logger, "EAVSIM_CRASH_STEPS", 0, 0, 1<<20),
		Seed:       uint64(envInt(logger, "EAVSIM_SEED", int(time.Now().UnixNano()&0x7fffffff), 0, 1<<62)),
		Kinematics: kin,
		View:       v,
	}

	if v := os.Getenv("EAVSIM_FIXED_FRAME"); v != "" {
		cfg.Fixed, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("EAVSIM_LOOP"); v != "" {
		cfg.Loop, _ = strconv.ParseBool(v)
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.DefaultConfig()
	cfg.MaxConcurrentPerIP = envInt(logger, "EAVSIM_STREAM_MAX_PER_IP", cfg.MaxConcurrentPerIP, 1, 100)
	cfg.FPS = envFloat(logger, "EAVSIM_STREAM_FPS", cfg.FPS, 1, 60)
	cfg.JPEGQuality = envInt(logger, "EAVSIM_STREAM_JPEG_QUALITY", cfg.JPEGQuality, 1, 100)
	if v := os.Getenv("EAVSIM_TRUST_PROXY"); v != "" {
		cfg.TrustProxy, _ = strconv.ParseBool(v)
	}
	return cfg
}

func envInt(logger *slog.Logger, key string, def, min, max int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		logger.Warn(fmt.Sprintf("invalid %s value, using default", key), "value", v, "default", def)
		return def
	}
	return n
}

func envFloat(logger *slog.Logger, key string, def, min, max float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < min || n > max {
		logger.Warn(fmt.Sprintf("invalid %s value, using default", key), "value", v, "default", def)
		return def
	}
	return n
}
