package story

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// ClipClient drives an asynchronous image-to-video backend: submit a job,
// poll until done, download the clip. Jobs are bounded by a maximum total
// wait; a timeout is an ordinary failure that routes into the mock fallback,
// never a hung pipeline.
type ClipClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	retry      common.RetryPolicy
	breaker    common.Breaker

	pollInterval time.Duration
	maxWait      time.Duration
}

func NewClipClient(endpoint, apiKey string) *ClipClient {
	c := &ClipClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		retry:        common.DefaultRetry,
		pollInterval: 20 * time.Second,
		maxWait:      5 * time.Minute,
	}
	if endpoint == "" {
		c.breaker.Trip("no clip endpoint configured")
	}
	return c
}

// Degraded reports whether the client is in permanent mock mode.
func (c *ClipClient) Degraded() bool { return c.breaker.Tripped() }

type clipJobRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	ImageB64        string `json:"image_b64,omitempty"`
}

type clipJobStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // pending, running, done, failed
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generate produces a short motion clip for prompt, optionally animating the
// supplied still image, at outputPath. Never fails to its caller.
func (c *ClipClient) Generate(ctx context.Context, prompt, imagePath, outputPath string, durationSec int) string {
	if c.breaker.Tripped() {
		return c.mockClip(prompt, outputPath, durationSec)
	}

	logrus.Infof("clip: generating %ds clip for %q", durationSec, Truncate(prompt, 50))

	err := c.retry.Do(ctx, func() error {
		return c.submitAndPoll(ctx, prompt, imagePath, outputPath, durationSec)
	})
	if err != nil {
		if c.breaker.TripOnQuota(err) {
			logrus.Warnf("clip: quota or rate limit exceeded, switching to mock mode permanently: %v", err)
		} else {
			logrus.Warnf("clip: generation failed: %v", err)
		}
		return c.mockClip(prompt, outputPath, durationSec)
	}
	return outputPath
}

func (c *ClipClient) submitAndPoll(ctx context.Context, prompt, imagePath, outputPath string, durationSec int) error {
	job := clipJobRequest{Prompt: prompt, DurationSeconds: durationSec}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err == nil {
			job.ImageB64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	status, err := c.submit(ctx, job)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.maxWait)
	for status.Status != "done" {
		if status.Status == "failed" {
			return fmt.Errorf("clip backend reported failure: %s", status.Error)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("clip generation timed out after %s", c.maxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
		status, err = c.poll(ctx, status.ID)
		if err != nil {
			return err
		}
	}
	return c.download(ctx, status.VideoURL, outputPath)
}

func (c *ClipClient) submit(ctx context.Context, job clipJobRequest) (*clipJobStatus, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/clips", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.decodeStatus(req)
}

func (c *ClipClient) poll(ctx context.Context, jobID string) (*clipJobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/clips/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.decodeStatus(req)
}

func (c *ClipClient) decodeStatus(req *http.Request) (*clipJobStatus, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("clip backend error: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var status clipJobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("invalid clip status response: %w", err)
	}
	return &status, nil
}

func (c *ClipClient) download(ctx context.Context, videoURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip download failed: HTTP %d", resp.StatusCode)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

// mockClip renders a plain color clip with ffmpeg so the compositor gets a
// real video stream; if even that fails, a marker file keeps the artifact
// contract and the compositor falls back to the still image.
func (c *ClipClient) mockClip(prompt, outputPath string, durationSec int) string {
	logrus.Infof("clip: mock generation for %q", Truncate(prompt, 50))

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x496D89:s=1920x1080:d=%d", durationSec),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		logrus.Warnf("clip: mock render failed (%v): %s", err, string(output))
		if werr := os.WriteFile(outputPath, []byte("Mock Video for prompt: "+prompt), 0644); werr != nil {
			logrus.Errorf("clip: failed to write mock artifact %s: %v", outputPath, werr)
		}
	}
	return outputPath
}
