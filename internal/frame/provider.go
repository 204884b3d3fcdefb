// Package frame supplies raw video frames and capture metadata to the
// simulation kernel. Providers are read-only collaborators: the episode
// state machine owns the frame cursor and decides what happens past the
// last frame; providers only answer for indices in [0, FrameCount).
package frame

import (
	"errors"
	"image"
)

// ErrFrameUnavailable is returned when a requested frame index cannot be
// served. The kernel surfaces it to the caller without retrying.
var ErrFrameUnavailable = errors.New("frame unavailable")

// Provider supplies video frames by index plus source metadata. Providers
// must return frames synchronously and must be safe for concurrent reads
// when shared across episodes.
type Provider interface {
	// FrameCount returns the number of available frames.
	FrameCount() int

	// FPS returns the native frame rate of the source video.
	FPS() float64

	// Frame returns the frame at the given index. Indices outside
	// [0, FrameCount) yield an error wrapping ErrFrameUnavailable.
	Frame(index int) (image.Image, error)

	// InitialAltitude returns the capture altitude in meters from the
	// companion telemetry, if known.
	InitialAltitude() (float64, bool)
}
