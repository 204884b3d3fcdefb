package frame

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// relAltPattern matches the relative-altitude field of DJI SRT telemetry,
// e.g. "[rel_alt: 49.800 abs_alt: 2040.628]".
var relAltPattern = regexp.MustCompile(`rel_alt:\s*([\d.]+)`)

// ReadSRTAltitude extracts the relative capture altitude in meters from a
// companion SRT telemetry file. Returns an error if the file cannot be
// read or carries no altitude field.
func ReadSRTAltitude(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("srt: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := relAltPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		alt, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("srt: bad rel_alt %q in %s: %w", m[1], path, err)
		}
		return alt, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("srt: read %s: %w", path, err)
	}
	return 0, fmt.Errorf("srt: no rel_alt field in %s", path)
}
