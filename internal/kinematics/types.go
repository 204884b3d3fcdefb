package kinematics

// Pose is the vehicle state carried between steps: position in source-frame
// pixels, altitude in meters above ground, yaw in radians wrapped to (-π, π].
type Pose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Altitude float64 `json:"altitude"`
	Yaw      float64 `json:"yaw"`
}

// Action is one control tick's worth of commands, each normalized to [-1, 1]:
// Thrust (vertical rate), YawRate, Forward (pitch-equivalent translation),
// Lateral (roll-equivalent translation).
type Action struct {
	Thrust  float64 `json:"thrust"`
	YawRate float64 `json:"yaw_rate"`
	Forward float64 `json:"forward"`
	Lateral float64 `json:"lateral"`
}

// Config holds per-axis gains (full-scale rates at action = ±1) and the
// altitude envelope.
type Config struct {
	ForwardRate float64 // px/s at full forward command
	LateralRate float64 // px/s at full lateral command
	ClimbRate   float64 // m/s at full thrust command
	YawRate     float64 // rad/s at full yaw command

	MinAltitude float64 // meters
	MaxAltitude float64 // meters

	// Damping enables momentum: the previous step's velocity carries over
	// scaled by this factor. Zero means each step treats the action freshly.
	Damping float64
}

// Result is the outcome of one integration step.
type Result struct {
	Pose Pose

	// AltitudeClamped reports that the commanded vertical motion ran into
	// the configured altitude bound this step.
	AltitudeClamped bool
}
