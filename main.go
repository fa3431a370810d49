package main

import (
	"context"
	"flag"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"novel2video/common"
	"novel2video/pipelines/story"
)

func main() {
	inputType := flag.String("input", "text", "Input type: 'text', 'pdf', or 'url'")
	serverMode := flag.Bool("server", false, "Run as HTTP server")
	port := flag.String("port", ":8080", "Server port (only with --server)")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of worker goroutines (only with --server)")
	effect := flag.String("effect", "random", "Motion effect: in, out, left, right, up, down, random")
	upload := flag.Bool("upload", false, "Upload the finished video to YouTube")
	title := flag.String("title", "", "Video title (used for thumbnail and upload)")
	description := flag.String("description", "", "Video description for upload")
	tags := flag.String("tags", "", "Comma-separated upload tags")
	flag.Parse()

	common.LoadEnv(".env")

	if *serverMode {
		StartServer(*port, *workers)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		logrus.Fatal("Usage: novel2video [--input=text|pdf|url] <text|pdf_path|url>\n       novel2video --server [--port=:8080] [--workers=4]")
	}

	config := common.PipelineConfig{
		InputType: common.InputType(*inputType),
		InputData: strings.Join(args, " "),
		OutputDir: "./output/output_" + time.Now().Format("20060102_150405"),
		Upload:    *upload,
	}
	config.FromEnv()
	config.MotionEffect = *effect
	config.UploadTitle = *title
	config.UploadDesc = *description
	if *tags != "" {
		config.UploadTags = strings.Split(*tags, ",")
	}

	ctx := context.Background()
	pipeline := story.NewPipeline(story.NewClients(ctx, &config))

	result, err := pipeline.Run(ctx, &config, nil)
	if err != nil {
		logrus.Fatalf("Pipeline failed: %v", err)
	}

	logrus.Infof("Pipeline completed: %d scenes, video at %s", result.SceneCount, result.VideoPath)
	if len(result.Degraded) > 0 {
		logrus.Warnf("Backends in mock mode this run: %s", strings.Join(result.Degraded, ", "))
	}
	if result.VideoID != "" {
		logrus.Infof("Uploaded video ID: %s", result.VideoID)
	}
}
