package control

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/viva-safeland/viva-safeland/internal/clock"
	"github.com/viva-safeland/viva-safeland/internal/episode"
)

// StepFunc receives each observation as it is produced. Returning an
// error stops the run.
type StepFunc func(step int, obs *image.RGBA, info episode.Info) error

// Runner steps an episode under a controller until the episode
// terminates, the step budget runs out, or the context is cancelled.
type Runner struct {
	ep       *episode.Episode
	ctrl     Controller
	throttle *clock.Throttle
	logger   *slog.Logger
	// MaxEpisodes bounds how many episodes the runner plays before
	// returning. Zero means one.
	MaxEpisodes int
}

// NewRunner builds a runner. fps sets the real-time pacing of the loop;
// pass 0 to run unthrottled (batch generation).
func NewRunner(ep *episode.Episode, ctrl Controller, fps float64, logger *slog.Logger) *Runner {
	return &Runner{
		ep:       ep,
		ctrl:     ctrl,
		throttle: clock.NewThrottle(fps),
		logger:   logger,
	}
}

// Run plays episodes until the budget is spent. onStep is called for the
// reset observation (step 0) and after every step; it may be nil.
// Blocks until done or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, onStep StepFunc) error {
	episodes := r.MaxEpisodes
	if episodes <= 0 {
		episodes = 1
	}

	for i := 0; i < episodes; i++ {
		if err := r.runOne(ctx, i, onStep); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, n int, onStep StepFunc) error {
	obs, info, err := r.ep.Reset(episode.ResetOptions{})
	if err != nil {
		return fmt.Errorf("episode reset: %w", err)
	}
	r.logger.Info("episode started",
		"episode", n,
		"x", info.Pose.X,
		"y", info.Pose.Y,
		"altitude", info.Pose.Altitude,
	)
	if onStep != nil {
		if err := onStep(0, obs, info); err != nil {
			return err
		}
	}

	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", "episode", n, "steps", step)
			return ctx.Err()
		default:
		}

		action, reset, terminate := r.ctrl.Action(step, info)
		if reset {
			obs, info, err = r.ep.Reset(episode.ResetOptions{})
			if err != nil {
				return fmt.Errorf("episode reset: %w", err)
			}
			step = -1 // restarts at 0 on the next iteration
			if onStep != nil {
				if err := onStep(0, obs, info); err != nil {
					return err
				}
			}
			continue
		}
		if terminate {
			r.ep.RequestTerminate()
		}

		var terminated bool
		obs, terminated, info, err = r.ep.Step(action)
		if err != nil {
			if errors.Is(err, episode.ErrInvalidState) {
				return err
			}
			return fmt.Errorf("episode step %d: %w", step, err)
		}
		if onStep != nil {
			if err := onStep(step+1, obs, info); err != nil {
				return err
			}
		}
		if terminated {
			r.logger.Info("episode finished",
				"episode", n,
				"steps", info.Step,
				"reason", string(info.Reason),
			)
			return nil
		}

		r.throttle.Wait()
	}
}
