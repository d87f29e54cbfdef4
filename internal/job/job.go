// Package job provides the Job aggregate for frame extraction requests
// submitted to the HTTP service, its state machine and persistence port.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/framegrab/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is stored and waiting to run.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates frames are being extracted.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates at least one frame was written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the extraction produced no usable output.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was stopped before finishing.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Params are the extraction settings requested for a job.
type Params struct {
	// Count is the number of frames; zero selects automatic mode.
	Count     int
	Width     int
	Height    int
	Quality   int
	Format    string
	TargetFPS float64
	OnError   string
}

// Result summarises a finished extraction.
type Result struct {
	// TotalFrames is the source frame count.
	TotalFrames int
	// Planned is the length of the sample sequence.
	Planned int
	// Failed is the number of skipped or aborting frames.
	Failed int
	// Files are the written frame paths in sequence order.
	Files []string
}

// Job represents a frame extraction job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Params are the requested extraction settings.
	Params Params
	// Progress is the percentage of completion (0-100).
	Progress int
	// Done is the number of processed samples.
	Done int
	// Error contains any error message if the job failed.
	Error string
	// InputPath is the staged source video.
	InputPath string
	// OutputDir is where frames are written.
	OutputDir string
	// PushToS3 indicates whether to upload the frames to S3.
	PushToS3 bool
	// Result is set once extraction finishes.
	Result Result
	// URLs are the S3 URLs of the frames if PushToS3 was true.
	URLs []string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.mu.Lock()
	j.Progress = 100
	j.mu.Unlock()
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress records done of total processed samples.
func (j *Job) UpdateProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Done = done
	if total > 0 {
		j.Progress = min(100, max(0, done*100/total))
	}
	j.UpdatedAt = time.Now()
}

// SetResult stores the extraction summary.
func (j *Job) SetResult(r Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = Result{
		TotalFrames: r.TotalFrames,
		Planned:     r.Planned,
		Failed:      r.Failed,
		Files:       slices.Clone(r.Files),
	}
	j.UpdatedAt = time.Now()
}

// SetError records a non-fatal error message.
func (j *Job) SetError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = msg
	j.UpdatedAt = time.Now()
}

// SetURLs stores the published frame URLs.
func (j *Job) SetURLs(urls []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.URLs = slices.Clone(urls)
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:        j.ID,
		Status:    j.Status,
		Params:    j.Params,
		Progress:  j.Progress,
		Done:      j.Done,
		Error:     j.Error,
		InputPath: j.InputPath,
		OutputDir: j.OutputDir,
		PushToS3:  j.PushToS3,
		Result: Result{
			TotalFrames: j.Result.TotalFrames,
			Planned:     j.Result.Planned,
			Failed:      j.Result.Failed,
			Files:       slices.Clone(j.Result.Files),
		},
		URLs:        slices.Clone(j.URLs),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
