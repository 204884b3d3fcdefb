package kinematics

import (
	"math"
	"testing"
)

const dt = 1.0 / 30.0

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinAltitude = 10
	cfg.MaxAltitude = 100
	return cfg
}

func newTestIntegrator(t *testing.T, cfg Config) *Integrator {
	t.Helper()
	in, err := NewIntegrator(cfg)
	if err != nil {
		t.Fatalf("NewIntegrator failed: %v", err)
	}
	return in
}

// TestYawClosure applies a yaw-rate action that sums to exactly 2π over N
// steps and verifies the vehicle returns to its original yaw.
func TestYawClosure(t *testing.T) {
	cfg := testConfig()
	in := newTestIntegrator(t, cfg)

	const steps = 1440
	// Choose the command so steps * command * YawRate * dt == 2π.
	command := 2 * math.Pi / (float64(steps) * cfg.YawRate * dt)
	if command > 1 {
		t.Fatalf("test setup: yaw command %v exceeds full scale", command)
	}

	pose := Pose{X: 1920, Y: 1080, Altitude: 50, Yaw: 0.25}
	start := pose.Yaw
	for i := 0; i < steps; i++ {
		pose = in.Step(pose, Action{YawRate: command}, dt).Pose
	}

	if diff := math.Abs(pose.Yaw - start); diff > 1e-9 {
		t.Errorf("yaw after full turn = %v, want %v (diff %g)", pose.Yaw, start, diff)
	}
	if pose.X != 1920 || pose.Y != 1080 || pose.Altitude != 50 {
		t.Errorf("pure yaw action moved the vehicle: %+v", pose)
	}
}

func TestYawWraps(t *testing.T) {
	in := newTestIntegrator(t, testConfig())
	pose := Pose{Altitude: 50, Yaw: math.Pi - 1e-3}
	pose = in.Step(pose, Action{YawRate: 1}, 1.0).Pose
	if pose.Yaw > math.Pi || pose.Yaw <= -math.Pi {
		t.Errorf("yaw %v not wrapped into (-π, π]", pose.Yaw)
	}
}

// TestForwardFollowsYaw verifies the yaw-relative control model: a forward
// command translates along the facing direction.
func TestForwardFollowsYaw(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name   string
		yaw    float64
		action Action
		wantDX float64
		wantDY float64
	}{
		{"forward at yaw 0", 0, Action{Forward: 1}, cfg.ForwardRate * dt, 0},
		{"forward at yaw 90", math.Pi / 2, Action{Forward: 1}, 0, cfg.ForwardRate * dt},
		{"forward at yaw 180", math.Pi, Action{Forward: 1}, -cfg.ForwardRate * dt, 0},
		{"lateral at yaw 0", 0, Action{Lateral: 1}, 0, cfg.LateralRate * dt},
		{"lateral at yaw 90", math.Pi / 2, Action{Lateral: 1}, -cfg.LateralRate * dt, 0},
		{"reverse at yaw 0", 0, Action{Forward: -0.5}, -0.5 * cfg.ForwardRate * dt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestIntegrator(t, cfg)
			pose := Pose{X: 1000, Y: 1000, Altitude: 50, Yaw: tt.yaw}
			next := in.Step(pose, tt.action, dt).Pose
			if math.Abs(next.X-pose.X-tt.wantDX) > 1e-9 {
				t.Errorf("dx = %v, want %v", next.X-pose.X, tt.wantDX)
			}
			if math.Abs(next.Y-pose.Y-tt.wantDY) > 1e-9 {
				t.Errorf("dy = %v, want %v", next.Y-pose.Y, tt.wantDY)
			}
		})
	}
}

// TestAltitudeClamp verifies a sustained full-thrust command pins altitude
// at exactly the configured bound without error.
func TestAltitudeClamp(t *testing.T) {
	cfg := testConfig()
	in := newTestIntegrator(t, cfg)

	pose := Pose{X: 1920, Y: 1080, Altitude: 99.9}
	var clamped bool
	for i := 0; i < 3; i++ {
		res := in.Step(pose, Action{Thrust: 1}, dt)
		pose = res.Pose
		clamped = clamped || res.AltitudeClamped
	}
	if pose.Altitude != cfg.MaxAltitude {
		t.Errorf("altitude = %v, want exactly %v", pose.Altitude, cfg.MaxAltitude)
	}
	if !clamped {
		t.Error("expected AltitudeClamped to be reported")
	}

	// Same at the floor.
	pose.Altitude = cfg.MinAltitude + 0.01
	for i := 0; i < 3; i++ {
		pose = in.Step(pose, Action{Thrust: -1}, dt).Pose
	}
	if pose.Altitude != cfg.MinAltitude {
		t.Errorf("altitude = %v, want exactly %v", pose.Altitude, cfg.MinAltitude)
	}
}

// TestAltitudeRoundTrip ascends by Δ then descends by Δ with no damping and
// expects the exact starting altitude back.
func TestAltitudeRoundTrip(t *testing.T) {
	in := newTestIntegrator(t, testConfig())
	pose := Pose{Altitude: 50}
	const steps = 30
	for i := 0; i < steps; i++ {
		pose = in.Step(pose, Action{Thrust: 0.5}, dt).Pose
	}
	for i := 0; i < steps; i++ {
		pose = in.Step(pose, Action{Thrust: -0.5}, dt).Pose
	}
	if math.Abs(pose.Altitude-50) > 1e-9 {
		t.Errorf("altitude after round trip = %v, want 50", pose.Altitude)
	}
}

func TestActionComponentsClamped(t *testing.T) {
	cfg := testConfig()
	in := newTestIntegrator(t, cfg)
	pose := Pose{X: 0, Y: 0, Altitude: 50}

	// An out-of-range command behaves exactly like full scale.
	wild := in.Step(pose, Action{Forward: 25}, dt).Pose
	full := in.Step(pose, Action{Forward: 1}, dt).Pose
	if wild != full {
		t.Errorf("unclamped action: got %+v, want %+v", wild, full)
	}
}

// TestDampingCarriesVelocity verifies momentum carryover and that Reset
// clears it.
func TestDampingCarriesVelocity(t *testing.T) {
	cfg := testConfig()
	cfg.Damping = 0.5
	in := newTestIntegrator(t, cfg)

	pose := Pose{Altitude: 50}
	pose = in.Step(pose, Action{Forward: 1}, dt).Pose
	moved := pose.X

	// Zero action still coasts at half the previous velocity.
	pose = in.Step(pose, Action{}, dt).Pose
	coast := pose.X - moved
	if math.Abs(coast-moved*cfg.Damping) > 1e-9 {
		t.Errorf("coast distance = %v, want %v", coast, moved*cfg.Damping)
	}

	in.Reset()
	pose = in.Step(pose, Action{}, dt).Pose
	if pose.X != moved+coast {
		t.Errorf("velocity survived Reset: moved %v", pose.X-moved-coast)
	}
}

// TestDeterminism runs the same action sequence twice and expects
// bit-identical poses.
func TestDeterminism(t *testing.T) {
	cfg := testConfig()
	actions := []Action{
		{Forward: 0.3, YawRate: 0.1},
		{Lateral: -0.7, Thrust: 0.2},
		{Forward: 1, YawRate: -1},
		{Thrust: -0.4},
	}

	run := func() Pose {
		in := newTestIntegrator(t, cfg)
		pose := Pose{X: 1920, Y: 1080, Altitude: 50, Yaw: 0.1}
		for i := 0; i < 100; i++ {
			pose = in.Step(pose, actions[i%len(actions)], dt).Pose
		}
		return pose
	}

	a, b := run(), run()
	if a != b {
		t.Errorf("identical runs diverged: %+v vs %+v", a, b)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min altitude", func(c *Config) { c.MinAltitude = 0 }},
		{"inverted bounds", func(c *Config) { c.MinAltitude = 100; c.MaxAltitude = 10 }},
		{"damping one", func(c *Config) { c.Damping = 1 }},
		{"negative damping", func(c *Config) { c.Damping = -0.1 }},
		{"negative rate", func(c *Config) { c.ClimbRate = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := NewIntegrator(cfg); err == nil {
				t.Error("expected construction error, got nil")
			}
		})
	}
}
