package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/maauso/framegrab/internal/bootstrap"
	"github.com/maauso/framegrab/internal/config"
	"github.com/maauso/framegrab/internal/encode"
	"github.com/maauso/framegrab/internal/extract"
	"github.com/maauso/framegrab/internal/storage"
)

// extractArgs are the parsed command line options of extract and info.
type extractArgs struct {
	path      string
	count     int
	width     int
	height    int
	outputDir string
	quality   int
	targetFPS float64
	format    string
	onError   string
	queue     int
	info      bool
	progress  bool
	pushToS3  bool
}

// parseExtractArgs parses flags and the single video path. Flags may appear
// before or after the path. Defaults come from cfg.
func parseExtractArgs(cfg *config.Config, name string, args []string, stderr io.Writer) (extractArgs, error) {
	a := extractArgs{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&a.count, "n", 0, "number of frames to extract (0 = automatic)")
	fs.IntVar(&a.width, "w", cfg.Width, "canvas width")
	fs.IntVar(&a.width, "width", cfg.Width, "canvas width")
	fs.IntVar(&a.height, "h", cfg.Height, "canvas height")
	fs.IntVar(&a.height, "height", cfg.Height, "canvas height")
	fs.StringVar(&a.outputDir, "o", cfg.OutputDir, "output directory")
	fs.IntVar(&a.quality, "q", cfg.Quality, "encoder quality 0-100")
	fs.Float64Var(&a.targetFPS, "fps", cfg.TargetFPS, "sampling rate for the automatic count")
	fs.StringVar(&a.format, "format", cfg.Format, "output format: jpg, png or webp")
	fs.StringVar(&a.onError, "on-error", cfg.OnError, "per-frame failure policy: skip or abort")
	fs.IntVar(&a.queue, "queue", cfg.QueueDepth, "decode/encode pipeline depth (0 = sequential)")
	fs.BoolVar(&a.info, "info", false, "print video details and exit")
	fs.BoolVar(&a.progress, "progress", true, "show a progress bar on stderr")
	fs.BoolVar(&a.pushToS3, "s3", false, "upload the frames to the configured S3 bucket")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: framegrab %s [flags] <video>\n\nFlags:\n", name)
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return a, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 1 {
		fs.Usage()
		return a, fmt.Errorf("expected one video path, got %d", len(positional))
	}
	a.path = positional[0]

	if a.count < 0 {
		return a, fmt.Errorf("-n must not be negative")
	}
	if a.width <= 0 || a.height <= 0 {
		return a, fmt.Errorf("canvas size must be positive, got %dx%d", a.width, a.height)
	}
	if a.targetFPS <= 0 {
		return a, fmt.Errorf("-fps must be positive, got %g", a.targetFPS)
	}
	if a.queue < 0 {
		return a, fmt.Errorf("-queue must not be negative")
	}
	if _, err := encode.ParseFormat(a.format); err != nil {
		return a, err
	}
	if _, err := extract.ParseErrorPolicy(a.onError); err != nil {
		return a, err
	}
	a.quality = encode.ClampQuality(a.quality)
	return a, nil
}

func (a extractArgs) options() extract.Options {
	return extract.Options{
		Count:      a.count,
		TargetFPS:  a.targetFPS,
		Width:      a.width,
		Height:     a.height,
		Format:     encode.Format(a.format),
		Quality:    a.quality,
		OutputDir:  a.outputDir,
		OnError:    extract.ErrorPolicy(a.onError),
		QueueDepth: a.queue,
	}
}

func runInfo(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	a, err := parseExtractArgs(cfg, "info", args, stderr)
	if err != nil {
		return err
	}
	return printInfo(ctx, bootstrap.NewExtractor(cfg, logger), a, stdout)
}

func printInfo(ctx context.Context, ext *extract.Extractor, a extractArgs, stdout io.Writer) error {
	info, err := ext.Inspect(ctx, a.path, a.targetFPS)
	if err != nil {
		return err
	}
	writeInfo(stdout, info)
	return nil
}

func runExtract(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	a, err := parseExtractArgs(cfg, "extract", args, stderr)
	if err != nil {
		return err
	}

	ext := bootstrap.NewExtractor(cfg, logger)
	if a.info {
		return printInfo(ctx, ext, a, stdout)
	}

	var store storage.Storage
	if a.pushToS3 {
		if !cfg.S3Enabled() {
			return fmt.Errorf("-s3 requires S3_BUCKET and S3_REGION")
		}
		if store, err = bootstrap.NewStorage(cfg, logger); err != nil {
			return err
		}
	}

	return extractFrames(ctx, ext, store, a, stdout, stderr)
}

// frameExtractor is the part of extract.Extractor that extractFrames needs.
type frameExtractor interface {
	Extract(ctx context.Context, path string, opts extract.Options) (*extract.Report, error)
}

// extractFrames runs one extraction, prints its summary and publishes the
// written frames when store is set. Frames written before an abort are
// still published, but the run reports errAborted.
func extractFrames(ctx context.Context, ext frameExtractor, store storage.Storage, a extractArgs, stdout, stderr io.Writer) error {
	opts := a.options()
	var bar *progressBar
	if a.progress {
		bar = newProgressBar(stderr)
		opts.Progress = bar.Update
	}

	report, extractErr := ext.Extract(ctx, a.path, opts)
	if bar != nil {
		bar.Finish()
	}
	writeSummary(stdout, report)

	if errors.Is(extractErr, context.Canceled) || report.Written() == 0 {
		return extractErr
	}

	if store != nil {
		prefix := strings.TrimSuffix(filepath.Base(a.path), filepath.Ext(a.path))
		urls, err := storage.UploadFrames(ctx, store, prefix, report.Files)
		fmt.Fprintf(stdout, "Uploaded %d/%d frames to S3\n", len(urls), report.Written())
		if err != nil {
			return fmt.Errorf("upload frames: %w", err)
		}
	}

	if extractErr != nil {
		return fmt.Errorf("%w after %d of %d frames: %w", errAborted, report.Written(), report.Planned, extractErr)
	}
	return nil
}
