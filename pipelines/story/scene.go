package story

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// speechSynthesizer is what the scene generator needs from the voice layer:
// a call that always leaves an artifact at the destination path. An entry is
// considered failed only when no usable file shows up there.
type speechSynthesizer interface {
	Generate(ctx context.Context, text string, profile common.VoiceProfile, outputPath string) string
}

// imageSynthesizer is the image layer seen by the scene generator.
type imageSynthesizer interface {
	Generate(ctx context.Context, prompt, outputPath string) string
}

// SceneGenerator builds one Scene per segment: screenplay, image, and a
// single- or multi-speaker audio track. No step is skipped on partial
// failure; degraded substitutes flow through instead. BuildScene never
// fails. The only caller-visible failure is zero scenes across a run,
// which the orchestrator reports.
type SceneGenerator struct {
	screenplays *ScreenplayGenerator
	images      imageSynthesizer
	voices      speechSynthesizer
	selector    *VoiceSelector
	clips       *ClipClient // optional, nil when clip generation is off
	outputDir   string
}

func NewSceneGenerator(
	screenplays *ScreenplayGenerator,
	images imageSynthesizer,
	voices speechSynthesizer,
	selector *VoiceSelector,
	clips *ClipClient,
	outputDir string,
) *SceneGenerator {
	return &SceneGenerator{
		screenplays: screenplays,
		images:      images,
		voices:      voices,
		selector:    selector,
		clips:       clips,
		outputDir:   outputDir,
	}
}

// BuildScene runs the fixed per-segment step order: screenplay, image
// prompt, image, audio, scene record. Index is 1-based in artifact names.
func (g *SceneGenerator) BuildScene(ctx context.Context, segment string, index int) *Scene {
	screenplay := g.screenplays.Generate(ctx, segment)
	if screenplay.IsFallback {
		logrus.Warnf("scene %d: using fallback screenplay: %s", index, screenplay.FallbackErr)
	}

	imagePath := filepath.Join(g.outputDir, fmt.Sprintf("scene_%d.png", index))
	g.images.Generate(ctx, screenplay.ImagePrompt(segment), imagePath)

	audioPath := filepath.Join(g.outputDir, fmt.Sprintf("voice_%d.mp3", index))
	var spokenText string
	if len(screenplay.AudioScript) > 0 {
		spokenText = g.synthesizeConversation(ctx, screenplay.AudioScript, audioPath, index)
	} else {
		spokenText = screenplay.NarrationText(segment)
		g.voices.Generate(ctx, spokenText, g.selector.Select("Narrator", nil), audioPath)
	}

	var clipPath string
	if g.clips != nil && !g.clips.Degraded() {
		clipPath = filepath.Join(g.outputDir, fmt.Sprintf("clip_%d.mp4", index))
		g.clips.Generate(ctx, screenplay.SceneDescription, imagePath, clipPath, 5)
	}

	return &Scene{
		ImagePath:     imagePath,
		VideoClipPath: clipPath,
		AudioPath:     audioPath,
		SpokenText:    spokenText,
		Screenplay:    screenplay,
		RawSegment:    segment,
	}
}

// synthesizeConversation renders each script line with its own resolved
// voice, concatenates the per-line tracks in script order, and returns the
// space-joined text of every line. Lines whose synthesis leaves no usable
// file are dropped from the audio but kept in the text. Temp files are
// removed on every exit path.
func (g *SceneGenerator) synthesizeConversation(ctx context.Context, script []ScriptLine, audioPath string, index int) string {
	tempDir := filepath.Join(g.outputDir, fmt.Sprintf("conv_%d", index))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		logrus.Errorf("scene %d: cannot create temp dir: %v", index, err)
	}
	defer os.RemoveAll(tempDir)

	var texts []string
	var lineFiles []string
	for i, line := range script {
		texts = append(texts, line.Text)

		profile := g.selector.Select(line.Speaker, line.Traits)
		linePath := filepath.Join(tempDir, fmt.Sprintf("line_%03d.mp3", i))
		g.voices.Generate(ctx, line.Text, profile, linePath)

		if info, err := os.Stat(linePath); err != nil || info.Size() == 0 {
			logrus.Warnf("scene %d: dropping line %d (%s) from audio, synthesis produced nothing", index, i, line.Speaker)
			continue
		}
		lineFiles = append(lineFiles, linePath)
	}

	if len(lineFiles) == 0 {
		logrus.Warnf("scene %d: conversation synthesis failed for every line, using single-voice fallback", index)
		g.voices.Generate(ctx, "Audio for this scene could not be generated.", g.selector.Select("Narrator", nil), audioPath)
		return strings.Join(texts, " ")
	}

	if err := concatAudio(lineFiles, tempDir, audioPath); err != nil {
		logrus.Warnf("scene %d: audio concat failed (%v), keeping first line only", index, err)
		if data, rerr := os.ReadFile(lineFiles[0]); rerr == nil {
			os.WriteFile(audioPath, data, 0644)
		}
	}
	return strings.Join(texts, " ")
}

// concatAudio joins audio files end to end with the ffmpeg concat demuxer.
func concatAudio(files []string, workDir, outputPath string) error {
	if len(files) == 1 {
		data, err := os.ReadFile(files[0])
		if err != nil {
			return err
		}
		return os.WriteFile(outputPath, data, 0644)
	}

	var list strings.Builder
	for _, f := range files {
		abs, _ := filepath.Abs(f)
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	listPath := filepath.Join(workDir, "concat_list.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return err
	}

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w: %s", err, string(output))
	}
	return nil
}
