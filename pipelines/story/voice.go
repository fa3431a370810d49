package story

import (
	"context"
	"fmt"
	"os"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// VoiceClient synthesizes speech through Google Cloud TTS, degrading to a
// deterministic placeholder artifact when credentials are absent or the
// quota runs out. Generate never fails: the caller always gets a file at
// the destination path.
type VoiceClient struct {
	client  *texttospeech.Client
	retry   common.RetryPolicy
	breaker common.Breaker
}

// NewVoiceClient probes the TTS backend once. Construction failure (missing
// credentials, no network) yields a degraded client, never an error.
func NewVoiceClient(ctx context.Context) *VoiceClient {
	v := &VoiceClient{retry: common.DefaultRetry}
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		v.breaker.Trip(err.Error())
		logrus.Warnf("voice: TTS backend unavailable, using mock mode: %v", err)
		return v
	}
	v.client = client
	return v
}

// Close releases the backend connection.
func (v *VoiceClient) Close() {
	if v.client != nil {
		v.client.Close()
	}
}

// Degraded reports whether the client is in permanent mock mode.
func (v *VoiceClient) Degraded() bool { return v.breaker.Tripped() }

// Generate synthesizes text into an audio file at outputPath using the given
// voice profile. On exhaustion of the retry budget, quota trip, or degraded
// mode, a placeholder artifact is written instead.
func (v *VoiceClient) Generate(ctx context.Context, text string, profile common.VoiceProfile, outputPath string) string {
	if v.breaker.Tripped() {
		return v.mockVoice(text, outputPath)
	}

	logrus.Infof("voice: synthesizing %q", Truncate(text, 50))

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: profile.LanguageCode,
			Name:         profile.Name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  profile.SpeakingRate,
			Pitch:         profile.Pitch,
		},
	}
	if req.Voice.LanguageCode == "" {
		req.Voice.LanguageCode = "en-US"
	}

	err := v.retry.Do(ctx, func() error {
		resp, err := v.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return err
		}
		return os.WriteFile(outputPath, resp.AudioContent, 0644)
	})
	if err != nil {
		if v.breaker.TripOnQuota(err) {
			logrus.Warnf("voice: quota or rate limit exceeded, switching to mock mode permanently: %v", err)
		} else {
			logrus.Warnf("voice: synthesis failed: %v", err)
		}
		return v.mockVoice(text, outputPath)
	}
	return outputPath
}

// mockVoice writes a deterministic placeholder so downstream stages always
// find a non-empty file; duration probing then falls back to its default.
func (v *VoiceClient) mockVoice(text, outputPath string) string {
	logrus.Infof("voice: mock synthesis for %q", Truncate(text, 50))
	content := fmt.Sprintf("Mock Audio Content for: %s", text)
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		logrus.Errorf("voice: failed to write mock artifact %s: %v", outputPath, err)
	}
	return outputPath
}
