// Package geom provides the shared planar geometry used by the kinematic
// integrator and the view synthesis engine: angle wrapping, scalar clamping,
// and the rotated sampling-window math that both components must agree on.
package geom

import "math"

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WrapAngle normalizes an angle in radians into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Extent is an axis-aligned rectangle [0, Width) x [0, Height) in
// source-frame pixel coordinates.
type Extent struct {
	Width  float64
	Height float64
}

// Window is a rotated rectangular sampling window: a center point,
// half-extents along the window's own axes, and a rotation angle.
type Window struct {
	CX, CY float64 // center, source-frame pixels
	HW, HH float64 // half width/height along the window axes
	Angle  float64 // rotation in radians
}

// BoundingHalfExtents returns the half width/height of the axis-aligned
// bounding box of the rotated window.
func (w Window) BoundingHalfExtents() (hx, hy float64) {
	c := math.Abs(math.Cos(w.Angle))
	s := math.Abs(math.Sin(w.Angle))
	hx = w.HW*c + w.HH*s
	hy = w.HW*s + w.HH*c
	return hx, hy
}

// Corners returns the window's four corners in order: top-left, top-right,
// bottom-right, bottom-left (in the window's own orientation).
func (w Window) Corners() [4][2]float64 {
	cos := math.Cos(w.Angle)
	sin := math.Sin(w.Angle)
	var out [4][2]float64
	local := [4][2]float64{
		{-w.HW, -w.HH},
		{+w.HW, -w.HH},
		{+w.HW, +w.HH},
		{-w.HW, +w.HH},
	}
	for i, p := range local {
		out[i][0] = w.CX + p[0]*cos - p[1]*sin
		out[i][1] = w.CY + p[0]*sin + p[1]*cos
	}
	return out
}

// ClampInside translates the window center (rotation and size unchanged)
// so its axis-aligned bounding box lies fully inside the extent. If the
// bounding box is larger than the extent on an axis the center is pinned
// to the extent midpoint on that axis.
func (w Window) ClampInside(ext Extent) Window {
	hx, hy := w.BoundingHalfExtents()

	out := w
	if 2*hx >= ext.Width {
		out.CX = ext.Width / 2
	} else {
		out.CX = Clamp(w.CX, hx, ext.Width-hx)
	}
	if 2*hy >= ext.Height {
		out.CY = ext.Height / 2
	} else {
		out.CY = Clamp(w.CY, hy, ext.Height-hy)
	}
	return out
}

// Inside reports whether the window's bounding box lies fully inside the
// extent, within tol pixels.
func (w Window) Inside(ext Extent, tol float64) bool {
	hx, hy := w.BoundingHalfExtents()
	return w.CX-hx >= -tol && w.CX+hx <= ext.Width+tol &&
		w.CY-hy >= -tol && w.CY+hy <= ext.Height+tol
}
