package story

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"novel2video/common"
)

// MockVideoID is returned for uploads that run without YouTube credentials
// or after the uploader has degraded.
const MockVideoID = "MOCK_VIDEO_ID_123"

// Uploader publishes the finished video to YouTube via the Data API v3.
// Missing credentials or an upload failure degrade it to mock mode; the
// pipeline treats upload as best-effort either way.
type Uploader struct {
	breaker common.Breaker
}

func NewUploader() *Uploader {
	u := &Uploader{}
	if os.Getenv("YOUTUBE_CLIENT_ID") == "" ||
		os.Getenv("YOUTUBE_CLIENT_SECRET") == "" ||
		os.Getenv("YOUTUBE_REFRESH_TOKEN") == "" {
		u.breaker.Trip("YouTube credentials not set, uploads will be mocked")
	}
	return u
}

func (u *Uploader) Degraded() bool { return u.breaker.Tripped() }

// Upload pushes the video and thumbnail and returns the video ID. It never
// returns an error: failures degrade the uploader and yield the mock ID.
func (u *Uploader) Upload(ctx context.Context, videoPath, thumbnailPath, title, description string, tags []string) string {
	if u.breaker.Tripped() {
		logrus.Warnf("upload: running in mock mode (%s)", u.breaker.Reason())
		return MockVideoID
	}

	videoID, err := u.doUpload(ctx, videoPath, thumbnailPath, title, description, tags)
	if err != nil {
		u.breaker.Trip(fmt.Sprintf("upload failed: %v", err))
		logrus.Errorf("upload: %v, returning mock ID", err)
		return MockVideoID
	}
	logrus.Infof("upload: published https://www.youtube.com/watch?v=%s", videoID)
	return videoID
}

func (u *Uploader) doUpload(ctx context.Context, videoPath, thumbnailPath, title, description string, tags []string) (string, error) {
	svc, err := u.service(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       Truncate(title, 100),
			Description: description,
			Tags:        tags,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "private",
		},
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	logrus.Infof("upload: uploading %q", video.Snippet.Title)
	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)
	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	if thumbnailPath != "" {
		if err := u.setThumbnail(svc, uploaded.Id, thumbnailPath); err != nil {
			logrus.Warnf("upload: thumbnail set failed: %v", err)
		}
	}
	return uploaded.Id, nil
}

func (u *Uploader) setThumbnail(svc *youtube.Service, videoID, thumbnailPath string) error {
	f, err := os.Open(thumbnailPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = svc.Thumbnails.Set(videoID).Media(f).Do()
	return err
}

// service builds the API client from env refresh-token credentials.
func (u *Uploader) service(ctx context.Context) (*youtube.Service, error) {
	conf := &oauth2.Config{
		ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, conf.TokenSource(ctx, token))))
}
