package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"novel2video/common"
	"novel2video/pipelines/story"
)

type JobStatus struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Percent   int           `json:"percent"`
	OutputDir string        `json:"output_dir,omitempty"`
	Error     string        `json:"error,omitempty"`
	Result    *story.Result `json:"result,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	DoneAt    *time.Time    `json:"done_at,omitempty"`
}

type Job struct {
	ID     string
	Config common.PipelineConfig
}

// WorkerPool runs queued jobs against a single shared Pipeline, so every
// run in the process shares the same generation clients and any quota
// degradation carries across runs.
type WorkerPool struct {
	jobs       chan *Job
	results    map[string]*JobStatus
	subs       map[string][]chan common.Progress
	mu         sync.RWMutex
	wg         sync.WaitGroup
	numWorkers int
	pipeline   *story.Pipeline
}

func NewWorkerPool(numWorkers, bufferSize int, pipeline *story.Pipeline) *WorkerPool {
	pool := &WorkerPool{
		jobs:       make(chan *Job, bufferSize),
		results:    make(map[string]*JobStatus),
		subs:       make(map[string][]chan common.Progress),
		numWorkers: numWorkers,
		pipeline:   pipeline,
	}
	pool.Start()
	return pool
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logrus.Infof("Started %d workers", p.numWorkers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		logrus.Infof("[Worker %d] Processing job %s", id, job.ID)
		p.processJob(job)
	}
	logrus.Infof("[Worker %d] Shutting down", id)
}

func (p *WorkerPool) processJob(job *Job) {
	p.setStatus(job.ID, "processing", "")

	progress := make(chan common.Progress, 16)
	drained := make(chan struct{})
	go func() {
		for ev := range progress {
			p.noteProgress(job.ID, ev)
		}
		close(drained)
	}()

	result, err := p.pipeline.Run(context.Background(), &job.Config, progress)
	close(progress)
	<-drained

	if err != nil {
		p.finish(job.ID, nil, err)
		logrus.Errorf("[Job %s] Failed: %v", job.ID, err)
	} else {
		p.finish(job.ID, result, nil)
		logrus.Infof("[Job %s] Completed, video at %s", job.ID, result.VideoPath)
	}
}

// noteProgress records the latest progress on the status record and fans it
// out to event subscribers. Slow subscribers drop events rather than stall
// the run.
func (p *WorkerPool) noteProgress(jobID string, ev common.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.results[jobID]; ok {
		status.Message = ev.Message
		status.Percent = ev.Percent
	}
	for _, sub := range p.subs[jobID] {
		select {
		case sub <- ev:
		default:
		}
	}
}

// finish records the terminal state and emits exactly one done event to
// each subscriber before closing it.
func (p *WorkerPool) finish(jobID string, result *story.Result, runErr error) {
	terminal := common.Progress{Message: "Finished", Percent: 100, Done: true}
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.results[jobID]; ok {
		now := time.Now()
		status.DoneAt = &now
		status.Result = result
		if runErr != nil {
			status.Status = "failed"
			status.Error = runErr.Error()
			terminal.Error = runErr.Error()
			terminal.Message = "Failed"
		} else {
			status.Status = "completed"
			status.Percent = 100
		}
	}
	for _, sub := range p.subs[jobID] {
		select {
		case sub <- terminal:
		default:
		}
		close(sub)
	}
	delete(p.subs, jobID)
}

func (p *WorkerPool) setStatus(jobID, status, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, exists := p.results[jobID]; exists {
		job.Status = status
		job.Error = errMsg
	}
}

func (p *WorkerPool) Submit(job *Job) {
	p.mu.Lock()
	p.results[job.ID] = &JobStatus{
		ID:        job.ID,
		Status:    "queued",
		OutputDir: job.Config.OutputDir,
		StartedAt: time.Now(),
	}
	p.mu.Unlock()

	p.jobs <- job
}

func (p *WorkerPool) GetStatus(jobID string) (*JobStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.results[jobID]
	return status, ok
}

// Subscribe returns a progress channel for a running job, or nil with
// done=true when the job already finished.
func (p *WorkerPool) Subscribe(jobID string) (ch chan common.Progress, done bool, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.results[jobID]
	if !ok {
		return nil, false, false
	}
	if status.DoneAt != nil {
		return nil, true, true
	}
	ch = make(chan common.Progress, 16)
	p.subs[jobID] = append(p.subs[jobID], ch)
	return ch, false, true
}

func (p *WorkerPool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}

type Server struct {
	pool      *WorkerPool
	baseCfg   common.PipelineConfig
	uploadDir string
}

func NewServer(numWorkers int) *Server {
	var baseCfg common.PipelineConfig
	baseCfg.FromEnv()
	if baseCfg.GeminiKey == "" {
		logrus.Warn("GEMINI_API_KEY not set, screenplay generation will use fallbacks")
	}

	uploadDir := "./uploads"
	os.MkdirAll(uploadDir, 0755)

	clients := story.NewClients(context.Background(), &baseCfg)
	return &Server{
		pool:      NewWorkerPool(numWorkers, 100, story.NewPipeline(clients)),
		baseCfg:   baseCfg,
		uploadDir: uploadDir,
	}
}

// handleSubmit accepts one job per request: a 'text' or 'url' form value,
// or a 'pdf' file upload.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.ParseMultipartForm(100 << 20)

	jobID := uuid.NewString()
	config := s.baseCfg
	config.OutputDir = filepath.Join("./output", "output_"+jobID)
	config.MotionEffect = r.FormValue("effect")
	config.VideoType = r.FormValue("video_type")
	config.Upload = r.FormValue("upload") == "true"
	config.UploadTitle = r.FormValue("title")
	config.UploadDesc = r.FormValue("description")
	if tags := r.FormValue("tags"); tags != "" {
		config.UploadTags = strings.Split(tags, ",")
	}

	switch {
	case r.FormValue("text") != "":
		config.InputType = common.InputText
		config.InputData = r.FormValue("text")
	case r.FormValue("url") != "":
		config.InputType = common.InputURL
		config.InputData = r.FormValue("url")
	default:
		file, header, err := r.FormFile("pdf")
		if err != nil {
			http.Error(w, "Provide a 'text' or 'url' form value, or a 'pdf' file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if filepath.Ext(header.Filename) != ".pdf" {
			http.Error(w, "Only PDF files are accepted", http.StatusBadRequest)
			return
		}
		pdfPath := filepath.Join(s.uploadDir, jobID+"_"+filepath.Base(header.Filename))
		dst, err := os.Create(pdfPath)
		if err != nil {
			http.Error(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			http.Error(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		dst.Close()
		config.InputType = common.InputPDF
		config.InputData = pdfPath
	}

	s.pool.Submit(&Job{ID: jobID, Config: config})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": "queued",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		http.Error(w, "Missing job id", http.StatusBadRequest)
		return
	}

	status, ok := s.pool.GetStatus(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleEvents streams progress for one job as server-sent events. The
// stream always ends with a single done event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		http.Error(w, "Missing job id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, alreadyDone, known := s.pool.Subscribe(jobID)
	if !known {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(ev common.Progress) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if alreadyDone {
		status, _ := s.pool.GetStatus(jobID)
		writeEvent(common.Progress{Message: status.Status, Percent: 100, Done: true, Error: status.Error})
		return
	}

	for {
		select {
		case ev, open := <-ch:
			if !open {
				// Terminal event was dropped; synthesize it from the record.
				if status, ok := s.pool.GetStatus(jobID); ok && status.DoneAt != nil {
					writeEvent(common.Progress{Message: status.Status, Percent: 100, Done: true, Error: status.Error})
				}
				return
			}
			writeEvent(ev)
			if ev.Done {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"workers":     s.pool.numWorkers,
		"goroutines":  runtime.NumGoroutine(),
		"queued_jobs": len(s.pool.jobs),
	})
}

func (s *Server) Shutdown(ctx context.Context) {
	s.pool.Shutdown()
}

func StartServer(addr string, numWorkers int) {
	server := NewServer(numWorkers)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/events", server.handleEvents)
	mux.HandleFunc("/jobs", server.handleSubmit)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Minute,
	}

	logrus.Infof("Server starting on %s with %d workers", addr, numWorkers)
	logrus.Info("POST /jobs with 'text', 'url', or 'pdf' form field to queue a run")

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatalf("Server failed: %v", err)
	}
}
