package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/maauso/framegrab/internal/job"
)

// frameNamePattern matches the names the extractor writes.
var frameNamePattern = regexp.MustCompile(`^frame\d{6,}\.(jpg|png|webp)$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ExtractionService
	validator          *validator.Validate
	logger             *slog.Logger
	defaults           job.Params
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaults sets the parameters used for fields a request leaves empty.
func WithDefaults(p job.Params) HandlerOption {
	return func(h *Handlers) {
		h.defaults = p
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ExtractionService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
		defaults: job.Params{
			Width:     1200,
			Height:    680,
			Quality:   95,
			Format:    "jpg",
			TargetFPS: 20,
			OnError:   "skip",
		},
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := job.CreateJobInput{
		VideoBase64: req.VideoBase64,
		Params:      h.params(req),
		PushToS3:    req.PushToS3,
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrInvalidVideo) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("num_frames", input.Params.Count),
		slog.Int("width", input.Params.Width),
		slog.Int("height", input.Params.Height),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// params merges a request with the server defaults.
func (h *Handlers) params(req CreateJobRequest) job.Params {
	p := h.defaults
	p.Count = req.NumFrames
	if req.Width > 0 {
		p.Width = req.Width
	}
	if req.Height > 0 {
		p.Height = req.Height
	}
	if req.Quality != nil {
		p.Quality = *req.Quality
	}
	if req.Format != "" {
		p.Format = req.Format
	}
	if req.TargetFPS > 0 {
		p.TargetFPS = req.TargetFPS
	}
	if req.OnError != "" {
		p.OnError = req.OnError
	}
	return p
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests. Only finished jobs can be
// deleted; their frames are removed from disk.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "job is still running", "JOB_NOT_FINISHED")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	}
}

// GetFrame handles GET /jobs/{id}/frames/{name} requests by serving one
// written frame file.
func (h *Handlers) GetFrame(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !frameNamePattern.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid frame name", "INVALID_FRAME_NAME")
		return
	}

	foundJob, ok := h.lookup(w, r)
	if !ok {
		return
	}

	idx := slices.IndexFunc(foundJob.Result.Files, func(f string) bool {
		return filepath.Base(f) == name
	})
	if idx < 0 {
		writeError(w, http.StatusNotFound, "frame not found", "FRAME_NOT_FOUND")
		return
	}

	http.ServeFile(w, r, foundJob.Result.Files[idx])
}

// JobEvents handles GET /jobs/{id}/events requests. It upgrades to a
// websocket and pushes the job as JSON whenever it changes, closing the
// stream once the job reaches a terminal state.
func (h *Handlers) JobEvents(w http.ResponseWriter, r *http.Request) {
	current, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("job_id", current.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = ws.Close() }()

	// The client sends nothing; reading only detects disconnects.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates, err := h.service.WatchJob(ctx, current.ID)
	if err != nil {
		closeStream(ws, websocket.CloseGoingAway, "job removed")
		return
	}

	for {
		var next *job.Job
		select {
		case <-ctx.Done():
			return
		case j, open := <-updates:
			if !open {
				// Terminal snapshots are handled below, so a close here
				// means the job was deleted or the client left.
				if ctx.Err() == nil {
					closeStream(ws, websocket.CloseGoingAway, "job removed")
				}
				return
			}
			next = j
		}

		if err := ws.WriteJSON(toJobResponse(next)); err != nil {
			h.logger.Debug("events client gone",
				slog.String("job_id", next.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		if next.IsTerminal() {
			closeStream(ws, websocket.CloseNormalClosure, string(next.Status))
			return
		}
	}
}

func closeStream(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// lookup resolves the {id} path value, writing the error response itself
// when the job cannot be returned.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		Done:        j.Done,
		Error:       j.Error,
		TotalFrames: j.Result.TotalFrames,
		Planned:     j.Result.Planned,
		Failed:      j.Result.Failed,
		URLs:        j.URLs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	for _, f := range j.Result.Files {
		resp.Frames = append(resp.Frames, filepath.Base(f))
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
