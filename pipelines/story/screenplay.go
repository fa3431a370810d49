package story

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// ScreenplayGenerator turns raw text segments into canonical Screenplay
// records. Every failure mode of the structuring backend collapses into a
// locally built fallback screenplay; Generate never fails.
type ScreenplayGenerator struct {
	gemini *common.GeminiClient
}

func NewScreenplayGenerator(gemini *common.GeminiClient) *ScreenplayGenerator {
	return &ScreenplayGenerator{gemini: gemini}
}

// Generate converts one segment into a Screenplay.
func (s *ScreenplayGenerator) Generate(ctx context.Context, segment string) *Screenplay {
	raw, err := s.gemini.GenerateScreenplay(ctx, segment)
	if err != nil {
		logrus.Warnf("screenplay: generation failed, building fallback: %v", err)
		return FallbackScreenplay(segment, err.Error())
	}
	return Normalize(raw, segment)
}

// fencedJSON matches a JSON object wrapped in a markdown code fence.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// Normalize parses and validates the raw model output, falling back to a
// screenplay built from the source segment when the shape is unusable.
func Normalize(raw, segment string) *Screenplay {
	payload := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	}

	var sp Screenplay
	if err := json.Unmarshal([]byte(payload), &sp); err != nil {
		logrus.Warnf("screenplay: response is not valid JSON, building fallback: %v", err)
		return FallbackScreenplay(segment, err.Error())
	}
	if reason := validate(&sp); reason != "" {
		logrus.Warnf("screenplay: response failed validation (%s), building fallback", reason)
		return FallbackScreenplay(segment, reason)
	}
	return &sp
}

// validate returns an empty string for a usable screenplay, otherwise the
// reason it was rejected. A non-empty audio_script is the canonical shape;
// without one the legacy trio must all be present.
func validate(sp *Screenplay) string {
	if len(sp.AudioScript) > 0 {
		for i, line := range sp.AudioScript {
			if strings.TrimSpace(line.Speaker) == "" || strings.TrimSpace(line.Text) == "" {
				logrus.Debugf("screenplay: audio_script entry %d missing speaker or text", i)
				return "audio_script entry missing speaker or text"
			}
		}
		return ""
	}

	if sp.SceneDescription == "" {
		return "missing scene_description"
	}
	if sp.Dialogues == nil {
		return "missing dialogues"
	}
	if sp.VoiceoverText == "" {
		return "missing voiceover_text"
	}
	return ""
}

// FallbackScreenplay builds a usable screenplay from the raw segment when the
// structuring call failed or its response could not be validated.
func FallbackScreenplay(segment, errDetail string) *Screenplay {
	spoken := Truncate(segment, 500)
	return &Screenplay{
		SceneDescription: "A scene depicting: " + Truncate(segment, 150),
		AudioScript:      []ScriptLine{{Speaker: "Narrator", Text: spoken}},
		Dialogues:        []Dialogue{},
		VoiceoverText:    spoken,
		IsFallback:       true,
		FallbackErr:      errDetail,
	}
}

// ImagePrompt derives the image synthesis prompt for a screenplay, falling
// back to a prefix of the raw segment when the scene description is empty.
func (sp *Screenplay) ImagePrompt(segment string) string {
	if desc := strings.TrimSpace(sp.SceneDescription); desc != "" {
		return "Cinematic shot: " + desc
	}
	return "Cinematic shot of: " + Truncate(segment, 100)
}

// NarrationText is the single-voice spoken content: voiceover_text, or a
// prefix of the raw segment when absent.
func (sp *Screenplay) NarrationText(segment string) string {
	if text := strings.TrimSpace(sp.VoiceoverText); text != "" {
		return text
	}
	return Truncate(segment, 500)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
