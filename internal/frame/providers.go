package frame

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Solid is a provider of uniformly colored frames. Used for fixed-background
// episodes in tests and for isolating navigation logic from scene dynamics.
type Solid struct {
	width, height int
	count         int
	fps           float64
	altitude      float64
	hasAltitude   bool

	frame *image.RGBA
}

// NewSolid builds a provider of count identical frames of the given color.
func NewSolid(width, height, count int, fps float64, c color.Color) *Solid {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return &Solid{width: width, height: height, count: count, fps: fps, frame: img}
}

// WithAltitude sets the reported capture altitude.
func (s *Solid) WithAltitude(meters float64) *Solid {
	s.altitude = meters
	s.hasAltitude = true
	return s
}

func (s *Solid) FrameCount() int { return s.count }
func (s *Solid) FPS() float64    { return s.fps }

func (s *Solid) Frame(index int) (image.Image, error) {
	if index < 0 || index >= s.count {
		return nil, fmt.Errorf("solid provider: index %d outside [0, %d): %w", index, s.count, ErrFrameUnavailable)
	}
	return s.frame, nil
}

func (s *Solid) InitialAltitude() (float64, bool) {
	return s.altitude, s.hasAltitude
}

// Still presents a single decoded image as a video of arbitrary length.
type Still struct {
	img         image.Image
	count       int
	fps         float64
	altitude    float64
	hasAltitude bool
}

// NewStill wraps an image as a count-frame video at the given rate.
func NewStill(img image.Image, count int, fps float64) *Still {
	return &Still{img: img, count: count, fps: fps}
}

// WithAltitude sets the reported capture altitude.
func (s *Still) WithAltitude(meters float64) *Still {
	s.altitude = meters
	s.hasAltitude = true
	return s
}

func (s *Still) FrameCount() int { return s.count }
func (s *Still) FPS() float64    { return s.fps }

func (s *Still) Frame(index int) (image.Image, error) {
	if index < 0 || index >= s.count {
		return nil, fmt.Errorf("still provider: index %d outside [0, %d): %w", index, s.count, ErrFrameUnavailable)
	}
	return s.img, nil
}

func (s *Still) InitialAltitude() (float64, bool) {
	return s.altitude, s.hasAltitude
}
