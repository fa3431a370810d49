package story

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssembleZeroScenes(t *testing.T) {
	c := NewCompositor("random")
	if _, err := c.Assemble(nil, filepath.Join(t.TempDir(), "out.mp4")); err == nil {
		t.Fatal("zero scenes must be a reported error")
	}
}

func TestAssembleNoUsableScenes(t *testing.T) {
	c := NewCompositor("in")
	scenes := []*Scene{
		{AudioPath: "/nonexistent/a.mp3", ImagePath: "/nonexistent/i.png"},
		{AudioPath: "/nonexistent/b.mp3"},
	}
	_, err := c.Assemble(scenes, filepath.Join(t.TempDir(), "out.mp4"))
	if err == nil {
		t.Fatal("scenes with no usable media must fail assembly, not panic")
	}
	if !strings.Contains(err.Error(), "no valid clips") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAssembleSkipsSceneWithoutVisual(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "voice_1.mp3")
	os.WriteFile(audio, []byte("audio"), 0644)

	c := NewCompositor("in")
	// Audio exists but there is neither an image nor a clip, so the scene is
	// skipped and the run fails with zero clips rather than crashing.
	scenes := []*Scene{{AudioPath: audio}}
	if _, err := c.Assemble(scenes, filepath.Join(dir, "out.mp4")); err == nil {
		t.Fatal("expected assembly failure when every scene lacks visuals")
	}
}

func TestAssembleEncoderFailureEmitsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "voice_1.mp3")
	image := filepath.Join(dir, "scene_1.png")
	os.WriteFile(audio, []byte("audio"), 0644)
	os.WriteFile(image, []byte("image"), 0644)

	// With an empty PATH the encoder binaries cannot be found, so every
	// render fails. Scenes with usable media must then downgrade to the
	// placeholder artifact instead of aborting the run.
	t.Setenv("PATH", dir)

	c := NewCompositor("in")
	out := filepath.Join(dir, "final_video.mp4")
	got, err := c.Assemble([]*Scene{{AudioPath: audio, ImagePath: image}}, out)
	if err != nil {
		t.Fatalf("encoder failure must not abort assembly: %v", err)
	}
	if got != out {
		t.Errorf("placeholder must keep the output path contract, got %q", got)
	}
	data, rerr := os.ReadFile(out)
	if rerr != nil {
		t.Fatalf("placeholder artifact missing: %v", rerr)
	}
	if !strings.Contains(string(data), "Contains 1 scenes") {
		t.Errorf("placeholder should record the intended scene count, got %q", data)
	}
}

func TestPlaceholderRecordsSceneCount(t *testing.T) {
	c := NewCompositor("random")
	scenes := []*Scene{
		{ImagePath: "s1.png", AudioPath: "v1.mp3"},
		{ImagePath: "s2.png", AudioPath: "v2.mp3"},
		{ImagePath: "s3.png", AudioPath: "v3.mp3"},
	}
	out := filepath.Join(t.TempDir(), "final_video.mp4")
	got := c.placeholder(scenes, out)
	if got != out {
		t.Errorf("placeholder must keep the output path contract, got %q", got)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("placeholder artifact missing: %v", err)
	}
	if !strings.Contains(string(data), "Contains 3 scenes") {
		t.Errorf("placeholder should record the intended scene count, got %q", data)
	}
}

func TestMotionFilterCoversAllEffects(t *testing.T) {
	c := NewCompositor("random")
	for _, effect := range motionEffects {
		filter, err := c.motionFilter(effect, 4.0)
		if err != nil {
			t.Errorf("effect %q: %v", effect, err)
			continue
		}
		if filter == "" {
			t.Errorf("effect %q produced an empty filter", effect)
		}
	}
}

func TestMotionFilterUnknownEffect(t *testing.T) {
	c := NewCompositor("random")
	if _, err := c.motionFilter("spiral", 4.0); err == nil {
		t.Fatal("unknown effect must be rejected")
	}
}

func TestPanFilterStaysInBounds(t *testing.T) {
	c := NewCompositor("left")
	filter := c.panFilter("left", 3.0)
	// The offset expression scales the slack by elapsed fraction, so it can
	// never exceed in_w-out_w.
	if !strings.Contains(filter, "crop=1920:1080") {
		t.Errorf("pan must crop to the output frame, got %q", filter)
	}
	if !strings.Contains(filter, "(in_w-out_w)*(t/3.000)") {
		t.Errorf("pan offset should be a linear fraction of the slack, got %q", filter)
	}
}
