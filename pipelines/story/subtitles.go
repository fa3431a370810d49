package story

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultSceneDuration substitutes for scenes whose audio artifact cannot be
// decoded (mock artifacts, truncated files).
const DefaultSceneDuration = 5.0

// DurationFunc measures a media file's playback length in seconds.
type DurationFunc func(path string) (float64, error)

// BuildTimeline walks scenes in order and accumulates playback time from
// each scene's measured audio duration. Start of cue i equals end of cue
// i-1; cue 0 starts at 0. Zero scenes is a reported error.
func BuildTimeline(scenes []*Scene, measure DurationFunc) ([]Cue, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("no scenes provided for timeline")
	}
	if measure == nil {
		measure = ProbeDuration
	}

	cues := make([]Cue, 0, len(scenes))
	elapsed := 0.0
	for i, scene := range scenes {
		duration := DefaultSceneDuration
		if d, err := measure(scene.AudioPath); err != nil {
			logrus.Warnf("timeline: could not measure %s, using %.1fs default: %v", scene.AudioPath, DefaultSceneDuration, err)
		} else {
			duration = d
		}

		cues = append(cues, Cue{
			Index: i + 1,
			Start: elapsed,
			End:   elapsed + duration,
			Text:  scene.SpokenText,
		})
		elapsed += duration
	}
	return cues, nil
}

// WriteSRT serializes cues in SubRip format: 1-based indices, HH:MM:SS,mmm
// timestamps, entries separated by a blank line. Text is written verbatim.
func WriteSRT(cues []Cue, path string) error {
	var sb strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&sb, "%d\n", cue.Index)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatSRTTime(cue.Start), FormatSRTTime(cue.End))
		fmt.Fprintf(&sb, "%s\n\n", cue.Text)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm with integer milliseconds.
func FormatSRTTime(seconds float64) string {
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseSRT reads back a SubRip stream into cues, for round-trip checks and
// downstream tooling.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	var cues []Cue

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		index, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("expected cue index, got %q", line)
		}

		if !scanner.Scan() {
			return nil, fmt.Errorf("cue %d: missing timing line", index)
		}
		parts := strings.Split(strings.TrimSpace(scanner.Text()), " --> ")
		if len(parts) != 2 {
			return nil, fmt.Errorf("cue %d: malformed timing line", index)
		}
		start, err := parseSRTTime(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}
		end, err := parseSRTTime(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}

		var textLines []string
		for scanner.Scan() {
			text := scanner.Text()
			if strings.TrimSpace(text) == "" {
				break
			}
			textLines = append(textLines, text)
		}

		cues = append(cues, Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(textLines, "\n"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cues, nil
}

func parseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	var h, m, sec, ms int
	if _, err := fmt.Sscanf(s, "%d:%d:%d,%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return float64(h)*3600 + float64(m)*60 + float64(sec) + float64(ms)/1000, nil
}
