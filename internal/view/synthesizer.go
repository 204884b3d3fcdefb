// Package view produces the image the vehicle sees at a given pose over a
// given source frame. Altitude controls the visible ground footprint, yaw
// rotates the sampling window, and position selects the sampled region. The
// mapping is geometrically consistent: ascending and descending by the same
// amount restores the apparent view, and a 360° yaw returns the original
// framing.
package view

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/viva-safeland/viva-safeland/internal/geom"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
)

// Synthesizer maps a vehicle pose onto a source frame. Stateless after
// construction; safe for concurrent use on distinct destination images.
type Synthesizer struct {
	config Config
	extent geom.Extent
}

// NewSynthesizer validates the configuration and returns a synthesizer.
func NewSynthesizer(config Config) (*Synthesizer, error) {
	if config.Law == "" {
		config.Law = LawLinear
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{
		config: config,
		extent: geom.Extent{Width: float64(config.FrameWidth), Height: float64(config.FrameHeight)},
	}, nil
}

// Config returns the synthesizer's configuration.
func (s *Synthesizer) Config() Config {
	return s.config
}

// maxFootprintFor returns the largest footprint width whose rotated window
// still fits inside the source frame at the given yaw.
func (s *Synthesizer) maxFootprintFor(yaw float64) float64 {
	a := s.config.aspect()
	c := math.Abs(math.Cos(yaw))
	sn := math.Abs(math.Sin(yaw))
	byWidth := s.extent.Width / (c + a*sn)
	byHeight := s.extent.Height / (sn + a*c)
	return math.Min(byWidth, byHeight)
}

// Window returns the clamped rotated sampling window for the pose: footprint
// from altitude, orientation from yaw, center translated (never scaled or
// rotated) until fully inside the source frame.
func (s *Synthesizer) Window(pose kinematics.Pose) geom.Window {
	fw := s.config.footprintWidth(pose.Altitude)
	fw = geom.Clamp(fw, s.config.MinFootprint, s.maxFootprintFor(pose.Yaw))

	w := geom.Window{
		CX:    pose.X,
		CY:    pose.Y,
		HW:    fw / 2,
		HH:    fw * s.config.aspect() / 2,
		Angle: pose.Yaw,
	}
	return w.ClampInside(s.extent)
}

// ClampCenter returns the pose's (x, y) translated so the sampling window
// lies fully inside the source frame. The episode applies this after each
// integration step so the integrator and the synthesizer share one bounds
// policy.
func (s *Synthesizer) ClampCenter(pose kinematics.Pose) (float64, float64) {
	w := s.Window(pose)
	return w.CX, w.CY
}

// Render warps the sampling window for the pose into a fresh output-sized
// RGBA image using bilinear interpolation. The frame must match the
// configured source resolution; a mismatch is a configuration error
// surfaced on the first offending step.
func (s *Synthesizer) Render(frame image.Image, pose kinematics.Pose) (*image.RGBA, error) {
	b := frame.Bounds()
	if b.Dx() != s.config.FrameWidth || b.Dy() != s.config.FrameHeight {
		return nil, fmt.Errorf("view: frame resolution %dx%d does not match configured %dx%d",
			b.Dx(), b.Dy(), s.config.FrameWidth, s.config.FrameHeight)
	}

	w := s.Window(pose)
	out := image.NewRGBA(image.Rect(0, 0, s.config.OutputWidth, s.config.OutputHeight))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	// Forward affine from source coordinates to output coordinates:
	// out = R(-yaw)/scale * (src - center) + outCenter.
	scale := 2 * w.HW / float64(s.config.OutputWidth)
	k := 1 / scale
	sin, cos := math.Sincos(w.Angle)
	ocx := float64(s.config.OutputWidth) / 2
	ocy := float64(s.config.OutputHeight) / 2

	m := f64.Aff3{
		k * cos, k * sin, ocx - k*(cos*w.CX+sin*w.CY),
		-k * sin, k * cos, ocy - k*(cos*w.CY-sin*w.CX),
	}

	xdraw.BiLinear.Transform(out, m, frame, b, xdraw.Src, nil)
	return out, nil
}
