package story

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration measures the playback length of a media file in seconds
// using ffprobe. A file ffprobe cannot decode (including the mock text
// artifacts the degraded clients emit) is an error, not a zero.
func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration for %s: %w", path, err)
	}
	return dur, nil
}
