package view

import (
	"fmt"
	"math"
)

// ScaleLaw selects how altitude maps to the visible ground footprint.
type ScaleLaw string

const (
	// LawLinear scales the footprint proportionally to altitude:
	// footprint = BaseFootprint * altitude / ReferenceAltitude.
	LawLinear ScaleLaw = "linear"

	// LawFOV derives the footprint from the camera's horizontal field of
	// view: footprint = 2 * tan(fov/2) * altitude * PixelsPerMeter.
	LawFOV ScaleLaw = "fov"
)

// Config holds the view synthesis parameters. The exact altitude-to-footprint
// constant is a calibration parameter, not a physical truth; both laws are
// provided and the choice is configurable.
type Config struct {
	OutputWidth  int
	OutputHeight int

	FrameWidth  int
	FrameHeight int

	// Linear law calibration.
	BaseFootprint     float64 // footprint width in source px at ReferenceAltitude
	ReferenceAltitude float64 // meters

	// FOV law calibration.
	HFOVDegrees    float64 // horizontal field of view
	PixelsPerMeter float64 // source-frame ground sampling density

	// MinFootprint is the smallest allowed footprint width in source px,
	// preventing degenerate sampling at very low altitude.
	MinFootprint float64

	Law ScaleLaw
}

// DefaultConfig returns the calibration for a 4K source video and the
// original capture geometry (DJI-style 82.1° horizontal FOV).
func DefaultConfig(frameW, frameH int) Config {
	return Config{
		OutputWidth:       480,
		OutputHeight:      288,
		FrameWidth:        frameW,
		FrameHeight:       frameH,
		BaseFootprint:     float64(frameW),
		ReferenceAltitude: 50,
		HFOVDegrees:       82.1,
		PixelsPerMeter:    float64(frameW) / 100,
		MinFootprint:      32,
		Law:               LawLinear,
	}
}

// aspect returns output height over width.
func (c Config) aspect() float64 {
	return float64(c.OutputHeight) / float64(c.OutputWidth)
}

// Validate reports configuration errors. These are fatal at construction,
// never recovered automatically.
func (c Config) Validate() error {
	if c.OutputWidth <= 0 || c.OutputHeight <= 0 {
		return fmt.Errorf("view: output size %dx%d is degenerate", c.OutputWidth, c.OutputHeight)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("view: source frame size %dx%d is degenerate", c.FrameWidth, c.FrameHeight)
	}
	if c.MinFootprint <= 0 {
		return fmt.Errorf("view: minimum footprint must be positive, got %g", c.MinFootprint)
	}
	switch c.Law {
	case LawLinear, "":
		if c.BaseFootprint <= 0 || c.ReferenceAltitude <= 0 {
			return fmt.Errorf("view: linear law requires positive base footprint and reference altitude")
		}
	case LawFOV:
		if c.HFOVDegrees <= 0 || c.HFOVDegrees >= 180 {
			return fmt.Errorf("view: horizontal FOV %g° out of range (0, 180)", c.HFOVDegrees)
		}
		if c.PixelsPerMeter <= 0 {
			return fmt.Errorf("view: pixels-per-meter must be positive, got %g", c.PixelsPerMeter)
		}
	default:
		return fmt.Errorf("view: unknown scale law %q", c.Law)
	}

	// The minimum footprint must fit inside the source frame at the worst
	// rotation, otherwise every sampling rectangle would degenerate. The
	// bounding extent of a rotated f × f·a window peaks at f·√(1+a²).
	a := c.aspect()
	worst := c.MinFootprint * math.Hypot(1, a)
	if worst > float64(c.FrameWidth) || worst > float64(c.FrameHeight) {
		return fmt.Errorf("view: source frame %dx%d smaller than minimum footprint %g",
			c.FrameWidth, c.FrameHeight, c.MinFootprint)
	}
	return nil
}

// footprintWidth returns the unclamped footprint width in source pixels for
// the given altitude.
func (c Config) footprintWidth(altitude float64) float64 {
	switch c.Law {
	case LawFOV:
		half := math.Tan(c.HFOVDegrees / 2 * math.Pi / 180)
		return 2 * half * altitude * c.PixelsPerMeter
	default:
		return c.BaseFootprint * altitude / c.ReferenceAltitude
	}
}
