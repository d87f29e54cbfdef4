package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/framegrab/internal/encode"
	"github.com/maauso/framegrab/internal/extract"
	"github.com/maauso/framegrab/internal/storage"
)

// ErrInvalidVideo is returned when the submitted video payload cannot be decoded.
var ErrInvalidVideo = errors.New("invalid video payload")

// FrameExtractor runs one extraction. *extract.Extractor satisfies it.
type FrameExtractor interface {
	Extract(ctx context.Context, path string, opts extract.Options) (*extract.Report, error)
}

// CreateJobInput contains the parameters of an extraction request.
type CreateJobInput struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string
	Params      Params
	// PushToS3 indicates whether to upload the frames to S3.
	PushToS3 bool
}

// ExtractionService orchestrates extraction jobs: staging the uploaded video,
// running the extractor in the background and optionally publishing frames.
type ExtractionService struct {
	repo       Repository
	extractor  FrameExtractor
	storage    storage.Storage
	logger     *slog.Logger
	queueDepth int
}

// ServiceOption configures an ExtractionService.
type ServiceOption func(*ExtractionService)

// WithQueueDepth enables the bounded decode/encode pipeline for every job.
func WithQueueDepth(depth int) ServiceOption {
	return func(s *ExtractionService) {
		if depth > 0 {
			s.queueDepth = depth
		}
	}
}

// NewExtractionService creates a new ExtractionService.
func NewExtractionService(repo Repository, extractor FrameExtractor, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractionService{
		repo:      repo,
		extractor: extractor,
		storage:   store,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob stages the video in temporary storage and persists a new job in
// IN_QUEUE status, ready for processing.
func (s *ExtractionService) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	data, err := base64.StdEncoding.DecodeString(input.VideoBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVideo, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidVideo)
	}

	job := New()
	job.Params = input.Params
	job.PushToS3 = input.PushToS3

	path, err := s.storage.SaveTemp(ctx, job.ID+"_input", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("stage video: %w", err)
	}
	job.InputPath = path

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("count", input.Params.Count),
		slog.Int("width", input.Params.Width),
		slog.Int("height", input.Params.Height),
		slog.String("format", input.Params.Format),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = s.storage.CleanupTemp(ctx, []string{path})
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ExtractionService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs.
func (s *ExtractionService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// WatchJob streams snapshots of a job as it changes. See Repository.Watch
// for when the channel closes.
func (s *ExtractionService) WatchJob(ctx context.Context, id string) (<-chan *Job, error) {
	return s.repo.Watch(ctx, id)
}

// DeleteJob removes a finished job together with its frames.
func (s *ExtractionService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, job.Status)
	}

	var paths []string
	if job.OutputDir != "" {
		paths = append(paths, job.OutputDir)
	}
	if job.InputPath != "" {
		paths = append(paths, job.InputPath)
	}
	if err := s.storage.CleanupTemp(ctx, paths); err != nil {
		s.logger.Warn("failed to clean job files",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
	return s.repo.Delete(ctx, id)
}

// ProcessExistingJob runs the extraction for a stored job and records the
// result. The job ends COMPLETED when at least one frame was written,
// CANCELLED when ctx is cancelled and FAILED otherwise.
func (s *ExtractionService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, err
	}

	outDir, err := s.storage.WorkDir(ctx, job.ID)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("create output directory: %w", err))
	}
	job.OutputDir = outDir
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	defer func() {
		// The staged input is no longer needed once extraction has run.
		if cerr := s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{job.InputPath}); cerr != nil {
			s.logger.Warn("failed to remove staged video",
				slog.String("job_id", job.ID),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	opts := extract.Options{
		Count:      job.Params.Count,
		TargetFPS:  job.Params.TargetFPS,
		Width:      job.Params.Width,
		Height:     job.Params.Height,
		Format:     encode.Format(job.Params.Format),
		Quality:    job.Params.Quality,
		OutputDir:  outDir,
		OnError:    extract.ErrorPolicy(job.Params.OnError),
		QueueDepth: s.queueDepth,
		Progress: func(done, total int) {
			job.UpdateProgress(done, total)
			if err := s.repo.Save(ctx, job); err != nil {
				s.logger.Warn("failed to save progress",
					slog.String("job_id", job.ID),
					slog.String("error", err.Error()),
				)
			}
		},
	}

	report, extractErr := s.extractor.Extract(ctx, job.InputPath, opts)
	if report != nil {
		job.SetResult(Result{
			TotalFrames: report.Metadata.FrameCount,
			Planned:     report.Planned,
			Failed:      len(report.Failures),
			Files:       report.Files,
		})
	}

	if ctx.Err() != nil {
		return s.cancel(job)
	}
	if report == nil || report.Written() == 0 {
		if extractErr == nil {
			extractErr = extract.ErrNothingWritten
		}
		return s.fail(ctx, job, extractErr)
	}
	if extractErr != nil {
		// Aborted part way: the frames written so far are kept.
		s.logger.Warn("extraction stopped early",
			slog.String("job_id", job.ID),
			slog.Int("written", report.Written()),
			slog.String("error", extractErr.Error()),
		)
		job.SetError(extractErr.Error())
	}

	if job.PushToS3 {
		urls, err := storage.UploadFrames(ctx, s.storage, job.ID, report.Files)
		if err != nil {
			return s.fail(ctx, job, fmt.Errorf("publish frames: %w", err))
		}
		job.SetURLs(urls)
	}

	if err := job.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Int("written", report.Written()),
		slog.Int("planned", report.Planned),
		slog.Int("uploaded", len(job.URLs)),
	)
	return job, nil
}

func (s *ExtractionService) fail(ctx context.Context, job *Job, cause error) (*Job, error) {
	s.logger.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("error", cause.Error()),
	)
	if err := job.Fail(cause.Error()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		return nil, err
	}
	return job, cause
}

func (s *ExtractionService) cancel(job *Job) (*Job, error) {
	s.logger.Warn("job cancelled", slog.String("job_id", job.ID))
	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(context.Background(), job); err != nil {
		return nil, err
	}
	return job, context.Canceled
}
