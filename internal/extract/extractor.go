// Package extract orchestrates frame extraction: it plans sample indices,
// decodes and fits each sampled frame and hands the canvas to an encoder.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/framegrab/internal/canvas"
	"github.com/maauso/framegrab/internal/encode"
	"github.com/maauso/framegrab/internal/media"
	"github.com/maauso/framegrab/internal/metrics"
	"github.com/maauso/framegrab/internal/sampler"
)

// DefaultOutputDir is used when Options.OutputDir is empty.
const DefaultOutputDir = "frames_output"

// Options configures one extraction run. Zero values select the defaults
// noted on each field; the rest is checked by the validate tags.
type Options struct {
	// Count is the number of frames to extract. Zero selects automatic mode.
	Count int `validate:"min=0"`
	// TargetFPS is the automatic-mode sampling rate. Defaults to sampler.DefaultTargetFPS.
	TargetFPS float64 `validate:"gte=0"`
	// Width and Height are the canvas size.
	Width  int `validate:"min=1"`
	Height int `validate:"min=1"`
	// Format defaults to JPEG.
	Format  encode.Format
	Quality int `validate:"min=0,max=100"`
	// OutputDir is created if missing.
	OutputDir string
	// OnError defaults to PolicySkip.
	OnError ErrorPolicy
	// QueueDepth > 0 overlaps decoding with encoding through a channel of
	// that capacity. Zero runs strictly sequentially.
	QueueDepth int `validate:"min=0"`
	// Progress, when set, is called after every element with the number of
	// processed elements and the sequence length.
	Progress func(done, total int)
}

var validate = validator.New()

// normalize fills defaults and rejects out-of-range values. Canvas and
// count violations match canvas.ErrInvalidDimensions and
// sampler.ErrInvalidCount; anything else matches ErrInvalidOptions.
func (o Options) normalize() (Options, error) {
	if err := validate.Struct(o); err != nil {
		return o, optionsError(o, err)
	}
	if o.TargetFPS == 0 {
		o.TargetFPS = sampler.DefaultTargetFPS
	}
	if o.Format == "" {
		o.Format = encode.FormatJPEG
	}
	format, err := encode.ParseFormat(string(o.Format))
	if err != nil {
		return o, err
	}
	o.Format = format
	if o.OnError == "" {
		o.OnError = PolicySkip
	}
	policy, err := ParseErrorPolicy(string(o.OnError))
	if err != nil {
		return o, err
	}
	o.OnError = policy
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	return o, nil
}

func optionsError(o Options, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Width", "Height":
		return fmt.Errorf("%w: width=%d, height=%d", canvas.ErrInvalidDimensions, o.Width, o.Height)
	case "Count":
		return fmt.Errorf("%w: %d", sampler.ErrInvalidCount, o.Count)
	default:
		return fmt.Errorf("%w: %s=%v (%s)", ErrInvalidOptions, fe.Field(), fe.Value(), fe.Tag())
	}
}

// Report describes a finished, failed or interrupted run.
type Report struct {
	Metadata media.Metadata
	// Suggested is the automatic-mode count for this source.
	Suggested int
	// Auto is true when Suggested was used as the requested count.
	Auto bool
	// Requested is the count asked for before clamping.
	Requested int
	// Planned is the length of the sample sequence.
	Planned int
	// OutputDir is the directory files were written to.
	OutputDir string
	// Files are the written paths in sequence order.
	Files []string
	// Failures are the per-frame errors that were skipped, plus the one that
	// aborted the run under PolicyAbort.
	Failures []*FrameError
	Elapsed  time.Duration
}

// Written returns the number of files written.
func (r *Report) Written() int {
	return len(r.Files)
}

// Info is the result of Inspect.
type Info struct {
	Metadata  media.Metadata
	Suggested int
}

// Extractor runs extractions against an Opener and an Encoder.
type Extractor struct {
	opener  media.Opener
	encoder encode.Encoder
	logger  *slog.Logger
	filter  imaging.ResampleFilter
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithResampleFilter overrides the scaling filter. Defaults to canvas.Lanczos4.
func WithResampleFilter(f imaging.ResampleFilter) Option {
	return func(e *Extractor) {
		e.filter = f
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opener media.Opener, encoder encode.Encoder, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		opener:  opener,
		encoder: encoder,
		logger:  logger,
		filter:  canvas.Lanczos4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Inspect opens path and returns its metadata and suggested automatic count.
func (e *Extractor) Inspect(ctx context.Context, path string, targetFPS float64) (*Info, error) {
	if targetFPS <= 0 {
		targetFPS = sampler.DefaultTargetFPS
	}
	var info *Info
	err := media.WithSource(ctx, e.opener, path, func(src media.Source) error {
		meta := src.Metadata()
		info = &Info{
			Metadata:  meta,
			Suggested: sampler.AutoCount(meta.FrameCount, meta.FPS, targetFPS),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Extract samples frames from the video at path and writes them to
// opts.OutputDir. The returned Report is never nil; on error it describes
// whatever was written before the failure. ErrNothingWritten is returned
// when the run completes without a single file.
func (e *Extractor) Extract(ctx context.Context, path string, opts Options) (*Report, error) {
	report := &Report{OutputDir: opts.OutputDir}
	opts, err := opts.normalize()
	if err != nil {
		return report, err
	}
	report.OutputDir = opts.OutputDir

	start := time.Now()
	metrics.ActiveExtractions.Inc()
	defer metrics.ActiveExtractions.Dec()

	err = media.WithSource(ctx, e.opener, path, func(src media.Source) error {
		return e.run(ctx, src, opts, report)
	})

	report.Elapsed = time.Since(start)
	metrics.ExtractionDuration.Observe(report.Elapsed.Seconds())

	if err == nil && report.Written() == 0 {
		err = ErrNothingWritten
	}
	metrics.ExtractionsTotal.WithLabelValues(outcome(report, err)).Inc()

	if err != nil {
		e.logger.Error("extraction failed",
			slog.String("path", path),
			slog.Int("written", report.Written()),
			slog.Int("planned", report.Planned),
			slog.String("error", err.Error()),
		)
		return report, err
	}

	e.logger.Info("extraction completed",
		slog.String("path", path),
		slog.Int("written", report.Written()),
		slog.Int("planned", report.Planned),
		slog.Int("failed", len(report.Failures)),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func outcome(r *Report, err error) string {
	switch {
	case r.Written() == 0:
		return metrics.OutcomeFailed
	case err != nil || len(r.Failures) > 0:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeSuccess
	}
}

func (e *Extractor) run(ctx context.Context, src media.Source, opts Options, report *Report) error {
	meta := src.Metadata()
	report.Metadata = meta
	report.Suggested = sampler.AutoCount(meta.FrameCount, meta.FPS, opts.TargetFPS)
	report.Requested = opts.Count
	if opts.Count == 0 {
		report.Auto = true
		report.Requested = report.Suggested
	}

	indices, err := sampler.Plan(meta.FrameCount, report.Requested)
	if err != nil {
		return err
	}
	report.Planned = len(indices)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	e.logger.Info("extraction started",
		slog.String("path", meta.Path),
		slog.Int("total_frames", meta.FrameCount),
		slog.Float64("fps", meta.FPS),
		slog.Int("requested", report.Requested),
		slog.Int("planned", report.Planned),
		slog.Bool("auto", report.Auto),
		slog.Int("queue_depth", opts.QueueDepth),
	)

	it := NewIterator(src, indices, opts.Width, opts.Height)
	it.filter = e.filter

	r := &runState{extractor: e, opts: opts, report: report}
	if opts.QueueDepth > 0 {
		return r.pipelined(ctx, it)
	}
	return r.sequential(ctx, it)
}

// runState carries the per-run bookkeeping shared by both execution modes.
// It is only touched from the goroutine that encodes.
type runState struct {
	extractor *Extractor
	opts      Options
	report    *Report
	done      int
}

func (r *runState) sequential(ctx context.Context, it *Iterator) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err := r.handle(ctx, s, err); err != nil {
			return err
		}
	}
}

type result struct {
	sample Sample
	err    error
}

// pipelined decodes and fits in a producer goroutine while the caller's
// goroutine encodes. Results arrive in sequence order, so the output is the
// same as sequential mode.
func (r *runState) pipelined(ctx context.Context, it *Iterator) error {
	ctx, cancel := context.WithCancel(ctx)
	results := make(chan result, r.opts.QueueDepth)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(results)
		for {
			s, err := it.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case results <- result{sample: s, err: err}:
			case <-ctx.Done():
				return
			}
			var fe *FrameError
			if err != nil && !errors.As(err, &fe) {
				return
			}
		}
	}()

	// The source is closed once we return, so the producer must be gone first.
	defer func() {
		cancel()
		wg.Wait()
	}()

	for res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.handle(ctx, res.sample, res.err); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// handle writes one sample or applies the error policy to its failure.
// A non-nil return stops the run.
func (r *runState) handle(ctx context.Context, s Sample, err error) error {
	if err == nil {
		err = r.write(ctx, s)
	}
	if err != nil {
		var fe *FrameError
		if !errors.As(err, &fe) {
			return err
		}
		if ferr := r.fail(fe); ferr != nil {
			return ferr
		}
	}

	r.done++
	if r.opts.Progress != nil {
		r.opts.Progress(r.done, r.report.Planned)
	}
	return nil
}

func (r *runState) write(ctx context.Context, s Sample) error {
	path := filepath.Join(r.opts.OutputDir, encode.FrameName(s.Position, r.opts.Format))
	err := r.extractor.encoder.Encode(ctx, s.Canvas, path, encode.Options{
		Format:  r.opts.Format,
		Quality: r.opts.Quality,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FrameError{Position: s.Position, Index: s.Index, Stage: StageEncode, Err: err}
	}

	r.report.Files = append(r.report.Files, path)
	metrics.FramesExtractedTotal.Inc()
	r.extractor.logger.Debug("frame written",
		slog.Int("position", s.Position),
		slog.Int("index", s.Index),
		slog.String("file", path),
	)
	return nil
}

func (r *runState) fail(fe *FrameError) error {
	r.report.Failures = append(r.report.Failures, fe)
	metrics.FrameFailuresTotal.WithLabelValues(string(fe.Stage)).Inc()
	r.extractor.logger.Warn("frame failed",
		slog.Int("position", fe.Position),
		slog.Int("index", fe.Index),
		slog.String("stage", string(fe.Stage)),
		slog.String("error", fe.Err.Error()),
	)
	if r.opts.OnError == PolicyAbort {
		return fe
	}
	return nil
}
