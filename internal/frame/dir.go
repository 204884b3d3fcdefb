package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir serves a video that was pre-extracted into a directory of numbered
// PNG/JPEG frame files, read lazily and in lexical order. Decoding happens
// on demand; decoded frames are not retained.
type Dir struct {
	paths       []string
	fps         float64
	altitude    float64
	hasAltitude bool
	logger      *slog.Logger
}

// NewDir scans dir for frame images. The companion SRT telemetry, if
// present next to the directory, supplies the capture altitude.
func NewDir(dir string, fps float64, logger *slog.Logger) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("frame dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("frame dir: no frame images in %s", dir)
	}

	d := &Dir{paths: paths, fps: fps, logger: logger}

	for _, srt := range []string{dir + ".SRT", dir + ".srt"} {
		alt, err := ReadSRTAltitude(srt)
		if err != nil {
			continue
		}
		d.altitude = alt
		d.hasAltitude = true
		logger.Info("capture altitude from telemetry", "path", srt, "altitude_m", alt)
		break
	}

	logger.Info("frame directory loaded", "dir", dir, "frames", len(paths), "fps", fps)
	return d, nil
}

func (d *Dir) FrameCount() int { return len(d.paths) }
func (d *Dir) FPS() float64    { return d.fps }

func (d *Dir) Frame(index int) (image.Image, error) {
	if index < 0 || index >= len(d.paths) {
		return nil, fmt.Errorf("frame dir: index %d outside [0, %d): %w", index, len(d.paths), ErrFrameUnavailable)
	}
	f, err := os.Open(d.paths[index])
	if err != nil {
		return nil, fmt.Errorf("frame dir: open %s: %v: %w", d.paths[index], err, ErrFrameUnavailable)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("frame dir: decode %s: %v: %w", d.paths[index], err, ErrFrameUnavailable)
	}
	return img, nil
}

func (d *Dir) InitialAltitude() (float64, bool) {
	return d.altitude, d.hasAltitude
}
