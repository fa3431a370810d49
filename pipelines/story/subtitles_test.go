package story

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func fixedDuration(d float64) DurationFunc {
	return func(string) (float64, error) { return d, nil }
}

func TestBuildTimelineCumulative(t *testing.T) {
	scenes := []*Scene{
		{AudioPath: "a1.mp3", SpokenText: "one"},
		{AudioPath: "a2.mp3", SpokenText: "two"},
		{AudioPath: "a3.mp3", SpokenText: "three"},
	}
	cues, err := BuildTimeline(scenes, fixedDuration(2.5))
	if err != nil {
		t.Fatalf("BuildTimeline failed: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}

	wantBounds := [][2]float64{{0, 2.5}, {2.5, 5.0}, {5.0, 7.5}}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Errorf("cue %d: index = %d, want %d", i, cue.Index, i+1)
		}
		if math.Abs(cue.Start-wantBounds[i][0]) > 1e-9 || math.Abs(cue.End-wantBounds[i][1]) > 1e-9 {
			t.Errorf("cue %d: [%v, %v], want %v", i, cue.Start, cue.End, wantBounds[i])
		}
	}
	// Adjacent cues share a boundary exactly.
	for i := 1; i < len(cues); i++ {
		if cues[i].Start != cues[i-1].End {
			t.Errorf("cue %d start %v != cue %d end %v", i, cues[i].Start, i-1, cues[i-1].End)
		}
	}
}

func TestBuildTimelineDefaultsUndecodableAudio(t *testing.T) {
	scenes := []*Scene{
		{AudioPath: "good.mp3", SpokenText: "one"},
		{AudioPath: "mock.mp3", SpokenText: "two"},
		{AudioPath: "good2.mp3", SpokenText: "three"},
	}
	measure := func(path string) (float64, error) {
		if path == "mock.mp3" {
			return 0, errors.New("not a media file")
		}
		return 3.0, nil
	}

	cues, err := BuildTimeline(scenes, measure)
	if err != nil {
		t.Fatalf("BuildTimeline failed: %v", err)
	}
	if got := cues[1].End - cues[1].Start; got != DefaultSceneDuration {
		t.Errorf("undecodable audio should default to %v seconds, got %v", DefaultSceneDuration, got)
	}
	if cues[2].Start != cues[1].End {
		t.Error("default duration must still accumulate into later cues")
	}
}

func TestBuildTimelineZeroScenes(t *testing.T) {
	if _, err := BuildTimeline(nil, fixedDuration(1)); err == nil {
		t.Fatal("zero scenes must be a reported error")
	}
}

func TestFormatSRTTime(t *testing.T) {
	cases := map[float64]string{
		0:        "00:00:00,000",
		2.5:      "00:00:02,500",
		61.042:   "00:01:01,042",
		3661.999: "01:01:01,999",
	}
	for in, want := range cases {
		if got := FormatSRTTime(in); got != want {
			t.Errorf("FormatSRTTime(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSRTRoundTrip(t *testing.T) {
	scenes := []*Scene{
		{AudioPath: "a.mp3", SpokenText: "The storm broke over the harbor."},
		{AudioPath: "b.mp3", SpokenText: "\"Hold the line!\" she shouted."},
	}
	cues, err := BuildTimeline(scenes, fixedDuration(4.2))
	if err != nil {
		t.Fatalf("BuildTimeline failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "subtitles.srt")
	if err := WriteSRT(cues, path); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open SRT: %v", err)
	}
	defer f.Close()

	parsed, err := ParseSRT(f)
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if len(parsed) != len(cues) {
		t.Fatalf("round trip changed cue count: %d vs %d", len(parsed), len(cues))
	}
	for i := range cues {
		if parsed[i].Index != cues[i].Index {
			t.Errorf("cue %d index changed: %d vs %d", i, parsed[i].Index, cues[i].Index)
		}
		if parsed[i].Text != cues[i].Text {
			t.Errorf("cue %d text changed: %q vs %q", i, parsed[i].Text, cues[i].Text)
		}
		if math.Abs(parsed[i].Start-cues[i].Start) > 0.001 || math.Abs(parsed[i].End-cues[i].End) > 0.001 {
			t.Errorf("cue %d timing drifted: [%v, %v] vs [%v, %v]",
				i, parsed[i].Start, parsed[i].End, cues[i].Start, cues[i].End)
		}
	}
}

func TestWriteSRTFormat(t *testing.T) {
	cues := []Cue{{Index: 1, Start: 0, End: 2.5, Text: "Hello there."}}
	path := filepath.Join(t.TempDir(), "one.srt")
	if err := WriteSRT(cues, path); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read SRT: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n"
	if string(data) != want {
		t.Errorf("unexpected SRT output:\n%q\nwant:\n%q", data, want)
	}
}
