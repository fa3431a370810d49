package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// Clients bundles the generation backends. A server process builds one
// bundle and reuses it across runs, so a quota trip in one run keeps later
// runs in mock mode instead of burning through the same quota again.
type Clients struct {
	Gemini *common.GeminiClient
	Voice  *VoiceClient
	Images *ImageClient
	Clips  *ClipClient // nil when no clip endpoint is configured
	Upload *Uploader
}

func NewClients(ctx context.Context, cfg *common.PipelineConfig) *Clients {
	gemini, err := common.NewGeminiClient(ctx, cfg.GeminiKey)
	if err != nil {
		logrus.Errorf("clients: gemini init failed, degrading to fallback screenplays: %v", err)
		gemini, _ = common.NewGeminiClient(ctx, "")
	}
	c := &Clients{
		Gemini: gemini,
		Voice:  NewVoiceClient(ctx),
		Images: NewImageClient(cfg.ImageEndpoint),
		Upload: NewUploader(),
	}
	if cfg.ClipEndpoint != "" {
		c.Clips = NewClipClient(cfg.ClipEndpoint, cfg.ClipKey)
	}
	return c
}

// Result describes a finished run and the artifacts it left on disk.
type Result struct {
	RunID         string   `json:"run_id"`
	CreatedAt     string   `json:"created_at"`
	SegmentCount  int      `json:"segment_count"`
	SceneCount    int      `json:"scene_count"`
	FallbackCount int      `json:"fallback_count"`
	VideoPath     string   `json:"video_path"`
	SubtitlePath  string   `json:"subtitle_path"`
	ThumbnailPath string   `json:"thumbnail_path"`
	VideoID       string   `json:"video_id,omitempty"`
	Degraded      []string `json:"degraded,omitempty"`
}

// Pipeline drives a full run: input text, segmentation, per-segment scene
// generation, subtitles, assembly, thumbnail, and the optional upload.
type Pipeline struct {
	clients *Clients
}

func NewPipeline(clients *Clients) *Pipeline {
	return &Pipeline{clients: clients}
}

// Run executes the pipeline for one input. Progress events (never a
// terminal one) are sent on progress when it is non-nil; the caller emits
// its own terminal event once Run returns. Only an unreadable input, an
// empty segmentation, or assembly with zero valid clips fails the run.
func (p *Pipeline) Run(ctx context.Context, cfg *common.PipelineConfig, progress chan<- common.Progress) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	report(progress, "Reading input", 2)
	text, err := p.resolveInput(cfg)
	if err != nil {
		return nil, err
	}

	segments := common.SegmentText(text, cfg.WordBudget)
	if len(segments) == 0 {
		return nil, fmt.Errorf("input produced no text segments")
	}
	logrus.Infof("pipeline: %d segments from %d chars of input", len(segments), len(text))

	selector := NewVoiceSelector(common.LoadVoiceTable(cfg.VoiceConfig))
	gen := NewSceneGenerator(
		NewScreenplayGenerator(p.clients.Gemini),
		p.clients.Images,
		p.clients.Voice,
		selector,
		p.clients.Clips,
		cfg.OutputDir,
	)

	var scenes []*Scene
	fallbacks := 0
	for i, segment := range segments {
		report(progress, fmt.Sprintf("Generating scene %d of %d", i+1, len(segments)), 5+70*i/len(segments))
		scene := gen.BuildScene(ctx, segment, i+1)
		if scene.Screenplay.IsFallback {
			fallbacks++
		}
		scenes = append(scenes, scene)
	}

	report(progress, "Writing subtitles", 78)
	srtPath := filepath.Join(cfg.OutputDir, "subtitles.srt")
	cues, err := BuildTimeline(scenes, nil)
	if err != nil {
		return nil, err
	}
	if err := WriteSRT(cues, srtPath); err != nil {
		logrus.Warnf("pipeline: subtitle write failed: %v", err)
		srtPath = ""
	}

	report(progress, "Assembling video", 82)
	compositor := NewCompositor(cfg.MotionEffect)
	videoPath, err := compositor.Assemble(scenes, filepath.Join(cfg.OutputDir, "final_video.mp4"))
	if err != nil {
		return nil, err
	}
	if srtPath != "" {
		subtitled := filepath.Join(cfg.OutputDir, "final_video_subtitled.mp4")
		if err := compositor.BurnSubtitles(videoPath, srtPath, subtitled); err != nil {
			logrus.Warnf("pipeline: subtitle burn-in failed, keeping plain video: %v", err)
		} else {
			videoPath = subtitled
		}
	}

	report(progress, "Creating thumbnail", 92)
	title := cfg.UploadTitle
	if title == "" {
		title = Truncate(strings.TrimSpace(segments[0]), 60)
	}
	thumbPath, err := NewThumbnailMaker(p.clients.Images).Create(ctx, title, filepath.Join(cfg.OutputDir, "thumbnail.png"))
	if err != nil {
		logrus.Warnf("pipeline: thumbnail creation failed: %v", err)
		thumbPath = ""
	}

	result := &Result{
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		SegmentCount:  len(segments),
		SceneCount:    len(scenes),
		FallbackCount: fallbacks,
		VideoPath:     videoPath,
		SubtitlePath:  srtPath,
		ThumbnailPath: thumbPath,
		Degraded:      p.degradedBackends(),
	}

	if cfg.Upload {
		report(progress, "Uploading to YouTube", 96)
		result.VideoID = p.clients.Upload.Upload(ctx, videoPath, thumbPath, title, cfg.UploadDesc, cfg.UploadTags)
	}

	if err := saveRunRecord(result, cfg.OutputDir); err != nil {
		logrus.Warnf("pipeline: failed to save run record: %v", err)
	}
	report(progress, "Finished", 100)
	return result, nil
}

func (p *Pipeline) resolveInput(cfg *common.PipelineConfig) (string, error) {
	switch cfg.InputType {
	case common.InputText:
		return cfg.InputData, nil
	case common.InputPDF:
		return common.ExtractTextFromPDF(cfg.InputData)
	case common.InputURL:
		return common.ExtractTextFromURL(cfg.InputData)
	default:
		return "", fmt.Errorf("unknown input type %q", cfg.InputType)
	}
}

// degradedBackends lists every backend currently in mock mode, for the run
// record and the status API.
func (p *Pipeline) degradedBackends() []string {
	var out []string
	if p.clients.Gemini != nil && p.clients.Gemini.Degraded() {
		out = append(out, "gemini")
	}
	if p.clients.Voice.Degraded() {
		out = append(out, "tts")
	}
	if p.clients.Images.Degraded() {
		out = append(out, "image")
	}
	if p.clients.Clips != nil && p.clients.Clips.Degraded() {
		out = append(out, "clip")
	}
	if p.clients.Upload.Degraded() {
		out = append(out, "upload")
	}
	return out
}

func saveRunRecord(result *Result, outputDir string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "run.json"), data, 0644)
}

func report(progress chan<- common.Progress, message string, percent int) {
	logrus.Infof("pipeline: %s (%d%%)", message, percent)
	if progress == nil {
		return
	}
	progress <- common.Progress{Message: message, Percent: percent}
}
