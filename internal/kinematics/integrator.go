// Package kinematics advances the vehicle pose from an action vector and
// elapsed time. Translation is commanded in the vehicle's yaw-aligned body
// frame and rotated into the fixed source-frame axes, so "forward" always
// means the direction the vehicle is facing.
package kinematics

import (
	"fmt"
	"math"

	"github.com/viva-safeland/viva-safeland/internal/geom"
)

// DefaultConfig returns the calibration used when nothing is configured.
// Rates are full-scale: a sustained ±1 command moves at exactly these rates.
func DefaultConfig() Config {
	return Config{
		ForwardRate: 600, // px/s over a 4K source frame
		LateralRate: 600,
		ClimbRate:   4, // m/s
		YawRate:     math.Pi / 6,
		MinAltitude: 2,
		MaxAltitude: 120,
	}
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.MinAltitude <= 0 {
		return fmt.Errorf("kinematics: min altitude must be positive, got %g", c.MinAltitude)
	}
	if c.MaxAltitude <= c.MinAltitude {
		return fmt.Errorf("kinematics: altitude bounds [%g, %g] are inverted or empty", c.MinAltitude, c.MaxAltitude)
	}
	if c.Damping < 0 || c.Damping >= 1 {
		return fmt.Errorf("kinematics: damping must be in [0, 1), got %g", c.Damping)
	}
	if c.ForwardRate < 0 || c.LateralRate < 0 || c.ClimbRate < 0 || c.YawRate < 0 {
		return fmt.Errorf("kinematics: rates must be non-negative")
	}
	return nil
}

// Integrator turns actions into pose deltas. With damping disabled it is a
// pure function of its inputs; with damping enabled it carries one step of
// velocity state, cleared by Reset.
type Integrator struct {
	config Config

	// Carried body-frame velocity, only meaningful when Damping > 0.
	velForward float64
	velLateral float64
	velClimb   float64
	velYaw     float64
}

// NewIntegrator validates the configuration and returns an integrator.
func NewIntegrator(config Config) (*Integrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Integrator{config: config}, nil
}

// Config returns the integrator's configuration.
func (in *Integrator) Config() Config {
	return in.config
}

// Reset clears any carried velocity. Called on episode reset.
func (in *Integrator) Reset() {
	in.velForward = 0
	in.velLateral = 0
	in.velClimb = 0
	in.velYaw = 0
}

// clampAction limits each component to [-1, 1] before use.
func clampAction(a Action) Action {
	return Action{
		Thrust:  geom.Clamp(a.Thrust, -1, 1),
		YawRate: geom.Clamp(a.YawRate, -1, 1),
		Forward: geom.Clamp(a.Forward, -1, 1),
		Lateral: geom.Clamp(a.Lateral, -1, 1),
	}
}

// Step advances the pose by dt seconds under the given action. No side
// effects beyond the carried velocity when damping is enabled; deterministic
// for identical inputs. Horizontal position is not clamped here; the
// episode clamps it against the view window so both components share one
// bounds policy.
func (in *Integrator) Step(pose Pose, action Action, dt float64) Result {
	a := clampAction(action)
	c := in.config

	vf := a.Forward * c.ForwardRate
	vl := a.Lateral * c.LateralRate
	vc := a.Thrust * c.ClimbRate
	vy := a.YawRate * c.YawRate

	if c.Damping > 0 {
		vf += in.velForward * c.Damping
		vl += in.velLateral * c.Damping
		vc += in.velClimb * c.Damping
		vy += in.velYaw * c.Damping
		in.velForward = vf
		in.velLateral = vl
		in.velClimb = vc
		in.velYaw = vy
	}

	next := pose
	next.Yaw = geom.WrapAngle(pose.Yaw + vy*dt)

	// Body-frame translation rotated into source-frame axes by the updated yaw.
	sin, cos := math.Sincos(next.Yaw)
	dxBody := vf * dt
	dyBody := vl * dt
	next.X = pose.X + dxBody*cos - dyBody*sin
	next.Y = pose.Y + dxBody*sin + dyBody*cos

	target := pose.Altitude + vc*dt
	next.Altitude = geom.Clamp(target, c.MinAltitude, c.MaxAltitude)
	clamped := target != next.Altitude

	return Result{Pose: next, AltitudeClamped: clamped}
}
