package story

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ThumbnailMaker composes a 1280x720 thumbnail: a generated background with
// the title drawn over a translucent band across the middle.
type ThumbnailMaker struct {
	images imageSynthesizer
}

func NewThumbnailMaker(images imageSynthesizer) *ThumbnailMaker {
	return &ThumbnailMaker{images: images}
}

// Create fetches a background for the title and overlays the title text.
// The background is fetched to a temporary sibling path and removed once
// the composed thumbnail is written.
func (t *ThumbnailMaker) Create(ctx context.Context, title, outputPath string) (string, error) {
	bgPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_bg.png"
	prompt := fmt.Sprintf("YouTube thumbnail background, dramatic cinematic art for a story titled: %s", Truncate(title, 100))
	t.images.Generate(ctx, prompt, bgPath)
	defer os.Remove(bgPath)

	img := gocv.IMRead(bgPath, gocv.IMReadColor)
	if img.Empty() {
		// Mock backgrounds are not decodable images. Fall back to a flat fill.
		img.Close()
		img = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(89, 57, 30, 0), 720, 1280, gocv.MatTypeCV8UC3)
	} else {
		resized := gocv.NewMat()
		gocv.Resize(img, &resized, image.Pt(1280, 720), 0, 0, gocv.InterpolationLinear)
		img.Close()
		img = resized
	}
	defer img.Close()

	t.drawTitle(&img, Truncate(title, 60))

	if ok := gocv.IMWrite(outputPath, img); !ok {
		return "", fmt.Errorf("failed to write thumbnail %s", outputPath)
	}
	logrus.Infof("thumbnail: wrote %s", outputPath)
	return outputPath, nil
}

// drawTitle blends a dark band behind the centered title so the text stays
// readable over any background.
func (t *ThumbnailMaker) drawTitle(img *gocv.Mat, title string) {
	const (
		font      = gocv.FontHersheyDuplex
		fontScale = 1.8
		thickness = 3
	)
	size := gocv.GetTextSize(title, font, fontScale, thickness)
	x := (img.Cols() - size.X) / 2
	if x < 10 {
		x = 10
	}
	y := img.Rows()/2 + size.Y/2

	band := image.Rect(0, y-size.Y-30, img.Cols(), y+30)
	overlay := img.Clone()
	defer overlay.Close()
	gocv.Rectangle(&overlay, band, color.RGBA{0, 0, 0, 0}, -1)
	gocv.AddWeighted(overlay, 0.6, *img, 0.4, 0, img)

	gocv.PutText(img, title, image.Pt(x, y), font, fontScale, color.RGBA{255, 255, 255, 0}, thickness)
}
