package common

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GeminiClient wraps the generative language backend used for screenplay
// structuring. With no API key it starts permanently degraded: calls fail
// fast and the screenplay layer substitutes its fallback structure, so a
// missing key never aborts a run.
type GeminiClient struct {
	client  *genai.Client
	models  []*genai.GenerativeModel
	active  atomic.Int32 // index into models; bumped when the current model errors
	retry   RetryPolicy
	breaker Breaker
}

// preferredModels is tried in order; a model that errors at call time is
// abandoned for the rest of the list.
var preferredModels = []string{"gemini-2.0-flash-exp", "gemini-1.5-pro", "gemini-1.5-flash"}

// NewGeminiClient builds the screenplay client. A missing API key yields a
// degraded client, not an error.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	g := &GeminiClient{retry: DefaultRetry}
	if apiKey == "" {
		g.breaker.Trip("no API key configured")
		logrus.Warn("gemini: no API key, screenplay generation degraded to fallback mode")
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	g.client = client
	for _, name := range preferredModels {
		model := client.GenerativeModel(name)
		model.SetTemperature(0.7)
		model.ResponseMIMEType = "application/json"
		g.models = append(g.models, model)
	}
	return g, nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// Degraded reports whether the client has permanently switched to fallback
// mode (missing key, or an observed quota/rate-limit failure).
func (g *GeminiClient) Degraded() bool { return g.breaker.Tripped() }

const screenplayPrompt = `Convert the following paragraph into a detailed cinematic screenplay object WITH CHARACTER ANALYSIS:
%s

You MUST respond with ONLY a valid JSON object (no markdown, no extra text).

The JSON structure must be:
{
  "scene_description": "Detailed cinematic scene description for image generation",
  "audio_script": [
    {
      "speaker": "Narrator",
      "text": "Narration text...",
      "traits": {
        "age": "child|teen|young_adult|adult|elderly",
        "gender": "male|female|neutral",
        "personality": ["calm", "bold", "gentle", "energetic", "wise", "dramatic"],
        "emotional_tone": "soft|energetic|calm|dramatic|cheerful|sad|neutral"
      }
    }
  ],
  "dialogues": [],
  "voiceover_text": "Full narration text (legacy support)"
}

For each speaker, infer character traits from the text to help select a voice:
age from descriptors (little, young, old, elderly), gender from pronouns and
titles, personality from adjectives describing the character, emotional_tone
from how they speak (whispered=soft, shouted=energetic). Use adult/neutral
defaults when traits cannot be inferred.

The 'audio_script' must list all spoken parts, narration and dialogue, in the
correct sequence. If there are no dialogues it contains just the Narrator part.`

// GenerateScreenplay asks the model to structure one text segment. It returns
// the raw response text; parsing and fallback construction happen in the
// screenplay layer. Calls after a quota trip fail immediately.
func (g *GeminiClient) GenerateScreenplay(ctx context.Context, segment string) (string, error) {
	if g.breaker.Tripped() {
		return "", fmt.Errorf("screenplay backend degraded: %s", g.breaker.Reason())
	}

	prompt := fmt.Sprintf(screenplayPrompt, segment)
	var raw string
	err := g.retry.Do(ctx, func() error {
		active := g.active.Load()
		resp, err := g.models[active].GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if int(active)+1 < len(g.models) && g.active.CompareAndSwap(active, active+1) {
				logrus.Warnf("gemini: model %s failed (%v), trying %s",
					preferredModels[active], err, preferredModels[active+1])
			}
			return err
		}
		text, err := extractTextFromResponse(resp)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		if g.breaker.TripOnQuota(err) {
			logrus.Warnf("gemini: quota exhausted, degrading screenplay generation permanently: %v", err)
		}
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	return raw, nil
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
