// Command eavgen plays scripted episodes offline and writes each
// observation as a numbered PNG, for building training datasets without
// running the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/viva-safeland/viva-safeland/internal/control"
	"github.com/viva-safeland/viva-safeland/internal/episode"
	"github.com/viva-safeland/viva-safeland/internal/frame"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
	"github.com/viva-safeland/viva-safeland/internal/view"
)

func main() {
	var (
		videoDir  = flag.String("video", "", "directory of source video frames (required)")
		fps       = flag.Float64("fps", 30, "source video frame rate")
		outDir    = flag.String("out", "out", "output directory for observation PNGs")
		script    = flag.String("script", "", "JSON file with an action sequence; empty means hover")
		episodes  = flag.Int("episodes", 1, "number of episodes to generate")
		maxSteps  = flag.Int("max-steps", 0, "step cap per episode (0 = run to video end)")
		seed      = flag.Uint64("seed", 1, "initial pose RNG seed")
		loop      = flag.Bool("loop", false, "loop the video instead of terminating")
		composite = flag.Bool("composite", false, "also write display composites with the sampling window outlined")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *videoDir == "" {
		fmt.Fprintln(os.Stderr, "eavgen: -video is required")
		flag.Usage()
		os.Exit(2)
	}

	provider, err := frame.NewDir(*videoDir, *fps, logger)
	if err != nil {
		logger.Error("open video source", "error", err)
		os.Exit(1)
	}

	first, err := provider.Frame(0)
	if err != nil {
		logger.Error("read first frame", "error", err)
		os.Exit(1)
	}

	cfg := episode.Config{
		ControlFPS: *fps,
		MaxSteps:   *maxSteps,
		Loop:       *loop,
		Seed:       *seed,
		Kinematics: kinematics.DefaultConfig(),
		View:       view.DefaultConfig(first.Bounds().Dx(), first.Bounds().Dy()),
	}
	ep, err := episode.New(cfg, provider, logger)
	if err != nil {
		logger.Error("episode construction failed", "error", err)
		os.Exit(1)
	}

	var ctrl control.Controller = control.Hover{}
	if *script != "" {
		actions, err := loadScript(*script)
		if err != nil {
			logger.Error("load action script", "error", err)
			os.Exit(1)
		}
		ctrl = &control.Scripted{Actions: actions, TerminateAtEnd: true}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("create output directory", "error", err)
		os.Exit(1)
	}

	var comp *view.CompositeRenderer
	if *composite {
		comp = view.NewCompositeRenderer(1280, 720, cfg.View)
	}

	// Batch generation runs unthrottled.
	runner := control.NewRunner(ep, ctrl, 0, logger)
	runner.MaxEpisodes = *episodes

	epIndex := -1
	written := 0
	err = runner.Run(context.Background(), func(step int, obs *image.RGBA, info episode.Info) error {
		if step == 0 {
			epIndex++
		}
		name := filepath.Join(*outDir, fmt.Sprintf("ep%03d_step%05d.png", epIndex, step))
		if err := writePNG(name, obs); err != nil {
			return err
		}
		written++

		if comp != nil {
			src := ep.CurrentFrame()
			if src != nil {
				img := comp.Render(src, obs, ep.Window())
				if err := writePNG(filepath.Join(*outDir, fmt.Sprintf("ep%03d_step%05d_display.png", epIndex, step)), img); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("generation complete", "episodes", epIndex+1, "observations", written, "out", *outDir)
}

func loadScript(path string) ([]kinematics.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var actions []kinematics.Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return actions, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
