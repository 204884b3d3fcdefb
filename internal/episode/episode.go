// Package episode implements the episodic state machine that ties the
// kinematic integrator and the view synthesis engine together: it owns the
// vehicle pose, the simulation clock, and the frame cursor, and it decides
// when an episode ends.
//
// An Episode is single-threaded: reset, step, and render are invoked
// sequentially by a caller-owned loop. Concurrent episodes must
// each own an independent Episode; they may share one read-only frame
// provider.
package episode

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/viva-safeland/viva-safeland/internal/clock"
	"github.com/viva-safeland/viva-safeland/internal/frame"
	"github.com/viva-safeland/viva-safeland/internal/geom"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
	"github.com/viva-safeland/viva-safeland/internal/metrics"
	"github.com/viva-safeland/viva-safeland/internal/view"
)

// State is the episode lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TerminationReason says why an episode ended.
type TerminationReason string

const (
	ReasonNone           TerminationReason = ""
	ReasonSignal         TerminationReason = "signal"
	ReasonVideoExhausted TerminationReason = "video_exhausted"
	ReasonMaxSteps       TerminationReason = "max_steps"
	ReasonCrash          TerminationReason = "crash"
)

// Config holds the episode configuration. Kinematics and View are validated
// by their own constructors.
type Config struct {
	// ControlFPS is the control step rate; the frame cursor advances by
	// round(videoFPS / ControlFPS) source frames per step, at minimum 1.
	ControlFPS float64

	// MaxSteps terminates the episode after this many steps. Zero means
	// unlimited.
	MaxSteps int

	// Fixed freezes the frame cursor at frame 0 for the whole episode.
	Fixed bool

	// Loop wraps the frame cursor at the end of the video instead of
	// terminating.
	Loop bool

	// CrashSteps terminates the episode after this many consecutive steps
	// pressing against an altitude bound. Zero disables crash detection.
	CrashSteps int

	// Seed drives the randomized initial pose policy. Two episodes with
	// the same seed, configuration, and action sequence are bit-identical.
	Seed uint64

	Kinematics kinematics.Config
	View       view.Config
}

// Info is the auxiliary per-step payload returned to the caller for
// logging and telemetry.
type Info struct {
	Step       int               `json:"step"`
	FrameIndex int               `json:"frame_index"`
	Pose       kinematics.Pose   `json:"pose"`
	Altitude   float64           `json:"altitude"`
	Reason     TerminationReason `json:"reason,omitempty"`
}

// ResetOptions selects the starting pose. A nil Pose randomizes within the
// configured bounds.
type ResetOptions struct {
	Pose *kinematics.Pose
}

// Episode owns one vehicle pose and one simulation clock over a shared
// read-only frame provider. Not safe for concurrent use.
type Episode struct {
	config   Config
	provider frame.Provider
	logger   *slog.Logger

	integrator  *kinematics.Integrator
	synthesizer *view.Synthesizer
	clk         *clock.SimClock
	cur         cursor
	rng         *rand.Rand

	// captureAltitude is the altitude the source video was shot at, when
	// the provider reports one; zero otherwise.
	captureAltitude float64

	state              State
	pose               kinematics.Pose
	terminateRequested bool
	crashCount         int

	lastObservation *image.RGBA
	lastFrame       image.Image
}

// New constructs an episode over the given provider. Configuration errors
// are fatal to the instance and reported here, never later.
func New(config Config, provider frame.Provider, logger *slog.Logger) (*Episode, error) {
	if provider == nil {
		return nil, fmt.Errorf("episode: frame provider is required")
	}
	if provider.FrameCount() <= 0 {
		return nil, fmt.Errorf("episode: provider has no frames")
	}
	if provider.FPS() <= 0 {
		return nil, fmt.Errorf("episode: provider FPS %g is not positive", provider.FPS())
	}
	if config.ControlFPS <= 0 {
		return nil, fmt.Errorf("episode: control FPS %g is not positive", config.ControlFPS)
	}

	// Learn the source resolution from the first frame; the provider owns
	// decoding, the kernel owns geometry.
	first, err := provider.Frame(0)
	if err != nil {
		return nil, fmt.Errorf("episode: reading first frame: %w", err)
	}
	fw, fh := first.Bounds().Dx(), first.Bounds().Dy()
	if config.View.FrameWidth == 0 && config.View.FrameHeight == 0 {
		config.View.FrameWidth = fw
		config.View.FrameHeight = fh
		if config.View.BaseFootprint == 0 {
			config.View.BaseFootprint = float64(fw)
		}
		if config.View.PixelsPerMeter == 0 {
			config.View.PixelsPerMeter = float64(fw) / 100
		}
	} else if config.View.FrameWidth != fw || config.View.FrameHeight != fh {
		return nil, fmt.Errorf("episode: configured frame size %dx%d does not match provider's %dx%d",
			config.View.FrameWidth, config.View.FrameHeight, fw, fh)
	}

	// A provider that knows its capture altitude calibrates the view: the
	// footprint law's reference becomes the altitude the video was shot
	// at, and the random starting pose stays below it.
	var captureAltitude float64
	if alt, ok := provider.InitialAltitude(); ok && alt > 0 {
		captureAltitude = alt
		config.View.ReferenceAltitude = alt
		logger.Info("view calibrated to capture altitude", "altitude_m", alt)
	}

	integrator, err := kinematics.NewIntegrator(config.Kinematics)
	if err != nil {
		return nil, err
	}
	synthesizer, err := view.NewSynthesizer(config.View)
	if err != nil {
		return nil, err
	}

	var cur cursor
	if config.Fixed {
		cur = fixedCursor{}
	} else {
		perStep := int(math.Round(provider.FPS() / config.ControlFPS))
		if perStep < 1 {
			perStep = 1
		}
		cur = &rollingCursor{
			frameCount: provider.FrameCount(),
			perStep:    perStep,
			loop:       config.Loop,
		}
	}

	logger.Info("episode configured",
		"control_fps", config.ControlFPS,
		"video_fps", provider.FPS(),
		"frame_count", provider.FrameCount(),
		"frame_size", fmt.Sprintf("%dx%d", fw, fh),
		"fixed", config.Fixed,
		"loop", config.Loop,
	)

	return &Episode{
		config:          config,
		provider:        provider,
		logger:          logger,
		integrator:      integrator,
		synthesizer:     synthesizer,
		clk:             clock.NewSimClock(config.ControlFPS),
		cur:             cur,
		rng:             rand.New(rand.NewPCG(config.Seed, config.Seed)),
		captureAltitude: captureAltitude,
		state:           StateUninitialized,
	}, nil
}

// State returns the current lifecycle state.
func (e *Episode) State() State {
	return e.state
}

// Pose returns the current vehicle pose.
func (e *Episode) Pose() kinematics.Pose {
	return e.pose
}

// FrameIndex returns the current frame cursor position.
func (e *Episode) FrameIndex() int {
	return e.cur.index()
}

// Window returns the current sampling window, for display overlays.
func (e *Episode) Window() geom.Window {
	return e.synthesizer.Window(e.pose)
}

// CurrentFrame returns the source frame behind the last observation, for
// display composites. Nil before the first reset.
func (e *Episode) CurrentFrame() image.Image {
	return e.lastFrame
}

// RequestTerminate flags the external terminate signal; the next step
// terminates the episode before anything else is evaluated.
func (e *Episode) RequestTerminate() {
	e.terminateRequested = true
}

// Info returns a snapshot of the current step counter, frame cursor and
// pose without advancing anything.
func (e *Episode) Info() Info {
	return e.info(e.cur.index(), ReasonNone)
}

// randomPose draws a starting pose within the configured bounds: altitude
// uniform inside the altitude envelope (biased away from the exact bounds,
// and below the capture altitude when known), yaw uniform over the full
// circle, position uniform over the frame and then clamped so the view
// window starts inside.
func (e *Episode) randomPose() kinematics.Pose {
	k := e.config.Kinematics
	altLo := k.MinAltitude + 1
	altHi := k.MaxAltitude - 1
	if e.captureAltitude > 0 && e.captureAltitude-1 < altHi {
		altHi = e.captureAltitude - 1
	}
	if altHi <= altLo {
		altLo, altHi = k.MinAltitude, math.Max(k.MinAltitude, altHi)
	}

	pose := kinematics.Pose{
		X:        e.rng.Float64() * float64(e.config.View.FrameWidth),
		Y:        e.rng.Float64() * float64(e.config.View.FrameHeight),
		Altitude: altLo + e.rng.Float64()*(altHi-altLo),
		Yaw:      geom.WrapAngle(e.rng.Float64() * 2 * math.Pi),
	}
	pose.X, pose.Y = e.synthesizer.ClampCenter(pose)
	return pose
}

// Reset starts a new episode: selects the initial pose, rewinds the clock
// and the frame cursor, clears the termination flag, and returns the first
// observation with auxiliary info.
func (e *Episode) Reset(opts ResetOptions) (*image.RGBA, Info, error) {
	if opts.Pose != nil {
		p := *opts.Pose
		p.Yaw = geom.WrapAngle(p.Yaw)
		p.Altitude = geom.Clamp(p.Altitude, e.config.Kinematics.MinAltitude, e.config.Kinematics.MaxAltitude)
		p.X, p.Y = e.synthesizer.ClampCenter(p)
		e.pose = p
	} else {
		e.pose = e.randomPose()
	}

	e.integrator.Reset()
	e.clk.Reset()
	e.terminateRequested = false
	e.crashCount = 0
	idx := e.cur.reset()

	img, err := e.provider.Frame(idx)
	if err != nil {
		return nil, Info{}, fmt.Errorf("episode: frame %d: %w", idx, err)
	}
	obs, err := e.synthesizer.Render(img, e.pose)
	if err != nil {
		return nil, Info{}, err
	}

	e.lastFrame = img
	e.lastObservation = obs
	e.state = StateReady
	metrics.RecordReset(e.pose.Altitude, idx)

	e.logger.Debug("episode reset",
		"x", e.pose.X, "y", e.pose.Y,
		"altitude", e.pose.Altitude, "yaw", e.pose.Yaw,
	)

	return obs, e.info(idx, ReasonNone), nil
}

// Step advances the simulation by one control interval: integrates the
// action into a new pose, moves the frame cursor, synthesizes the
// observation, and evaluates termination (first match wins: external
// signal, video exhausted, step limit, sustained altitude-bound contact).
func (e *Episode) Step(action kinematics.Action) (*image.RGBA, bool, Info, error) {
	if e.state != StateReady && e.state != StateRunning {
		return nil, false, Info{}, fmt.Errorf("step in state %s: %w", e.state, ErrInvalidState)
	}

	start := time.Now()
	step := e.clk.Tick()

	res := e.integrator.Step(e.pose, action, e.clk.Dt())
	e.pose = res.Pose
	e.pose.X, e.pose.Y = e.synthesizer.ClampCenter(e.pose)

	if res.AltitudeClamped {
		e.crashCount++
	} else {
		e.crashCount = 0
	}

	idx, exhausted := e.cur.advance()

	reason := ReasonNone
	switch {
	case e.terminateRequested:
		reason = ReasonSignal
	case exhausted:
		reason = ReasonVideoExhausted
	case e.config.MaxSteps > 0 && step >= e.config.MaxSteps:
		reason = ReasonMaxSteps
	case e.config.CrashSteps > 0 && e.crashCount >= e.config.CrashSteps:
		reason = ReasonCrash
	}

	img, err := e.provider.Frame(idx)
	if err != nil {
		// No retry; the caller decides how to recover.
		return nil, false, Info{}, fmt.Errorf("episode: frame %d: %w", idx, err)
	}
	obs, err := e.synthesizer.Render(img, e.pose)
	if err != nil {
		return nil, false, Info{}, err
	}

	e.lastFrame = img
	e.lastObservation = obs
	terminated := reason != ReasonNone
	if terminated {
		e.state = StateTerminated
		metrics.RecordTermination(string(reason))
		e.logger.Info("episode terminated", "reason", string(reason), "step", step)
	} else {
		e.state = StateRunning
	}
	metrics.RecordStep(time.Since(start), e.pose.Altitude, idx)

	return obs, terminated, e.info(idx, reason), nil
}

// Render returns the most recently computed observation without advancing
// the simulation. Callable any time after the first reset.
func (e *Episode) Render() (*image.RGBA, error) {
	if e.lastObservation == nil {
		return nil, fmt.Errorf("render before reset: %w", ErrInvalidState)
	}
	return e.lastObservation, nil
}

func (e *Episode) info(frameIndex int, reason TerminationReason) Info {
	return Info{
		Step:       e.clk.Step(),
		FrameIndex: frameIndex,
		Pose:       e.pose,
		Altitude:   e.pose.Altitude,
		Reason:     reason,
	}
}
