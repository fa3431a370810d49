package story

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"novel2video/common"
)

// ImageClient fetches synthesized stills from an HTTP image backend, with
// the same degradation contract as the other generation clients: retries,
// a permanent mock switch on quota failures, and a placeholder artifact
// whenever the real call cannot deliver.
type ImageClient struct {
	endpoint   string
	httpClient *http.Client
	retry      common.RetryPolicy
	breaker    common.Breaker
}

// NewImageClient builds the client. An empty endpoint means no backend is
// configured and the client starts degraded.
func NewImageClient(endpoint string) *ImageClient {
	c := &ImageClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      common.DefaultRetry,
	}
	if endpoint == "" {
		c.breaker.Trip("no image endpoint configured")
		logrus.Warn("image: no backend configured, using mock mode")
	}
	return c
}

// Degraded reports whether the client is in permanent mock mode.
func (c *ImageClient) Degraded() bool { return c.breaker.Tripped() }

// Generate renders prompt into an image file at outputPath. Never fails:
// the worst case is a placeholder image at the same path.
func (c *ImageClient) Generate(ctx context.Context, prompt, outputPath string) string {
	if c.breaker.Tripped() {
		return c.mockImage(prompt, outputPath)
	}

	logrus.Infof("image: generating for prompt %q", Truncate(prompt, 50))

	reqURL := fmt.Sprintf("%s/prompt/%s?width=1920&height=1080", c.endpoint, url.PathEscape(prompt))
	err := c.retry.Do(ctx, func() error {
		return c.fetch(ctx, reqURL, outputPath)
	})
	if err != nil {
		if c.breaker.TripOnQuota(err) {
			logrus.Warnf("image: quota or rate limit exceeded, switching to mock mode permanently: %v", err)
		} else {
			logrus.Warnf("image: generation failed: %v", err)
		}
		return c.mockImage(prompt, outputPath)
	}
	return outputPath
}

func (c *ImageClient) fetch(ctx context.Context, reqURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rate limit (HTTP 429): %s", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("image backend error: HTTP %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes), likely an error page", len(data))
	}
	return os.WriteFile(outputPath, data, 0644)
}

// mockImage renders a flat-color placeholder with the prompt burned in, so
// the compositor and thumbnail stages always have a decodable image.
func (c *ImageClient) mockImage(prompt, outputPath string) string {
	logrus.Infof("image: mock generation for %q", Truncate(prompt, 50))

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(137, 109, 73, 0), 1080, 1920, gocv.MatTypeCV8UC3)
	defer mat.Close()

	gocv.PutText(&mat, "Mock Image", image.Pt(40, 80), gocv.FontHersheySimplex, 2.0,
		color.RGBA{R: 255, G: 255, B: 0, A: 255}, 3)
	gocv.PutText(&mat, Truncate(prompt, 100), image.Pt(40, 160), gocv.FontHersheySimplex, 1.0,
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)

	if ok := gocv.IMWrite(outputPath, mat); !ok {
		// keep the artifact contract even without an image encoder
		if err := os.WriteFile(outputPath, []byte("Mock Image for prompt: "+prompt), 0644); err != nil {
			logrus.Errorf("image: failed to write mock artifact %s: %v", outputPath, err)
		}
	}
	return outputPath
}
