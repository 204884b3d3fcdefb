package view

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"

	"github.com/viva-safeland/viva-safeland/internal/geom"
)

// CompositeRenderer builds the display-oriented variant of the observation:
// the downscaled source frame with the sampling window outlined, and the
// observation itself beside it. This is the image returned by render() for
// human display; the kernel observation stays the raw synthesized view.
type CompositeRenderer struct {
	windowW int
	windowH int

	frameFactor float64
	viewFactor  float64
}

// NewCompositeRenderer sizes the composite for the given display window.
// Proportions follow the capture layout: the source frame takes 70% of the
// display width, the observation 29%.
func NewCompositeRenderer(windowW, windowH int, cfg Config) *CompositeRenderer {
	return &CompositeRenderer{
		windowW:     windowW,
		windowH:     windowH,
		frameFactor: 0.7 * float64(windowW) / float64(cfg.FrameWidth),
		viewFactor:  0.29 * float64(windowW) / float64(cfg.OutputWidth),
	}
}

// Render composes the display image from the current source frame, the
// synthesized observation, and the sampling window.
func (r *CompositeRenderer) Render(frame image.Image, observation *image.RGBA, window geom.Window) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, r.windowW, r.windowH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	fw := uint(float64(frame.Bounds().Dx()) * r.frameFactor)
	small := resize.Resize(fw, 0, frame, resize.Bilinear)
	frameY := (r.windowH - small.Bounds().Dy()) / 2
	draw.Draw(canvas, small.Bounds().Add(image.Pt(0, frameY)), small, image.Point{}, draw.Src)

	// Outline the sampling window on the downscaled frame.
	corners := window.Corners()
	for i := range corners {
		a := corners[i]
		b := corners[(i+1)%4]
		drawLine(canvas,
			int(a[0]*r.frameFactor), int(a[1]*r.frameFactor)+frameY,
			int(b[0]*r.frameFactor), int(b[1]*r.frameFactor)+frameY,
			color.RGBA{R: 255, A: 255})
	}

	if observation != nil {
		vw := uint(float64(observation.Bounds().Dx()) * r.viewFactor)
		view := resize.Resize(vw, 0, observation, resize.Bilinear)
		viewX := r.windowW - view.Bounds().Dx()
		draw.Draw(canvas, view.Bounds().Add(image.Pt(viewX, 0)), view, image.Point{}, draw.Src)
	}

	return canvas
}

// drawLine plots a 1px line between two points, clipped to the image bounds.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := math.Abs(float64(x1 - x0))
	dy := math.Abs(float64(y1 - y0))
	steps := int(math.Max(dx, dy))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(t*float64(x1-x0))
		y := y0 + int(t*float64(y1-y0))
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, c)
		}
	}
}
