package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"novel2video/common"
	"novel2video/pipelines/story"
)

// TestConcurrentJobs pushes several jobs through the worker pool at once.
// Without API keys every backend runs in mock mode, which is exactly what
// this exercises: degraded runs must still finish and leave artifacts.
func TestConcurrentJobs(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("Skipping worker pool test: ffmpeg not installed")
	}

	common.LoadEnv(".env")

	var baseCfg common.PipelineConfig
	baseCfg.FromEnv()
	clients := story.NewClients(context.Background(), &baseCfg)
	pool := NewWorkerPool(2, 10, story.NewPipeline(clients))
	defer pool.Shutdown()

	const jobCount = 2
	jobIDs := make([]string, jobCount)
	for i := 0; i < jobCount; i++ {
		outputDir := fmt.Sprintf("test_output_job_%d_%d", i, time.Now().Unix())
		defer os.RemoveAll(outputDir)

		config := baseCfg
		config.InputType = common.InputText
		config.InputData = "The ship left the harbor at dawn. By noon the coast was gone. That night the storm found them."
		config.OutputDir = outputDir

		jobIDs[i] = fmt.Sprintf("job-%d", i)
		pool.Submit(&Job{ID: jobIDs[i], Config: config})
	}

	deadline := time.Now().Add(5 * time.Minute)
	for _, jobID := range jobIDs {
		for {
			status, ok := pool.GetStatus(jobID)
			if !ok {
				t.Fatalf("job %s vanished from the pool", jobID)
			}
			if status.DoneAt != nil {
				if status.Status != "completed" {
					t.Errorf("job %s finished as %s: %s", jobID, status.Status, status.Error)
				} else if status.Result == nil || status.Result.SceneCount == 0 {
					t.Errorf("job %s completed without scenes", jobID)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not finish in time (last: %s %d%%)", jobID, status.Message, status.Percent)
			}
			time.Sleep(500 * time.Millisecond)
		}
	}
}
