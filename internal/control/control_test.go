package control

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"os"
	"testing"

	"github.com/viva-safeland/viva-safeland/internal/episode"
	"github.com/viva-safeland/viva-safeland/internal/frame"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
	"github.com/viva-safeland/viva-safeland/internal/view"
)

func testEpisode(t *testing.T, frames int, fixed bool) *episode.Episode {
	t.Helper()
	cfg := episode.Config{
		ControlFPS: 30,
		Fixed:      fixed,
		Seed:       7,
		Kinematics: kinematics.DefaultConfig(),
		View:       view.DefaultConfig(1920, 1080),
	}
	cfg.View.OutputWidth = 64
	cfg.View.OutputHeight = 36
	p := frame.NewSolid(1920, 1080, frames, 30, color.RGBA{R: 60, G: 60, B: 60, A: 255})
	ep, err := episode.New(cfg, p, slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		t.Fatalf("episode: %v", err)
	}
	return ep
}

func TestScriptedReplaysThenHolds(t *testing.T) {
	s := &Scripted{Actions: []kinematics.Action{{Forward: 1}, {Lateral: -1}}}

	a, reset, term := s.Action(0, episode.Info{})
	if a.Forward != 1 || reset || term {
		t.Fatalf("step 0: got %+v reset=%v term=%v", a, reset, term)
	}
	a, _, _ = s.Action(1, episode.Info{})
	if a.Lateral != -1 {
		t.Fatalf("step 1: got %+v", a)
	}
	a, _, term = s.Action(2, episode.Info{})
	if a != (kinematics.Action{}) || term {
		t.Fatalf("exhausted script must hold zero action, got %+v term=%v", a, term)
	}

	s.TerminateAtEnd = true
	if _, _, term = s.Action(2, episode.Info{}); !term {
		t.Fatal("TerminateAtEnd not honored")
	}
}

func TestRunnerPlaysToVideoExhaustion(t *testing.T) {
	ep := testEpisode(t, 6, false)
	r := NewRunner(ep, Hover{}, 0, slog.Default())

	var steps int
	var last episode.Info
	err := r.Run(context.Background(), func(step int, obs *image.RGBA, info episode.Info) error {
		if obs == nil {
			t.Fatalf("nil observation at step %d", step)
		}
		steps = step
		last = info
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 6 frames at matched fps: reset serves frame 0, steps 1..5 serve the
	// remainder, step 6 terminates on exhaustion.
	if steps != 6 {
		t.Fatalf("expected 6 steps, got %d", steps)
	}
	if last.Reason != episode.ReasonVideoExhausted {
		t.Fatalf("expected video exhaustion, got %q", last.Reason)
	}
	if ep.State() != episode.StateTerminated {
		t.Fatalf("expected terminated state, got %v", ep.State())
	}
}

func TestRunnerScriptedTerminate(t *testing.T) {
	ep := testEpisode(t, 100, true)
	ctrl := &Scripted{
		Actions:        []kinematics.Action{{Thrust: 0.5}, {Thrust: 0.5}},
		TerminateAtEnd: true,
	}
	r := NewRunner(ep, ctrl, 0, slog.Default())

	var last episode.Info
	err := r.Run(context.Background(), func(step int, _ *image.RGBA, info episode.Info) error {
		last = info
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if last.Reason != episode.ReasonSignal {
		t.Fatalf("expected signal termination, got %q", last.Reason)
	}
}

func TestRunnerContextCancel(t *testing.T) {
	ep := testEpisode(t, 100, true)
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ep, Hover{}, 0, slog.Default())

	err := r.Run(ctx, func(step int, _ *image.RGBA, _ episode.Info) error {
		if step == 3 {
			cancel()
		}
		return nil
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerMultipleEpisodes(t *testing.T) {
	ep := testEpisode(t, 4, false)
	r := NewRunner(ep, Hover{}, 0, slog.Default())
	r.MaxEpisodes = 3

	var resets int
	err := r.Run(context.Background(), func(step int, _ *image.RGBA, _ episode.Info) error {
		if step == 0 {
			resets++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resets != 3 {
		t.Fatalf("expected 3 episodes, got %d", resets)
	}
}
