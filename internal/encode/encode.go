// Package encode writes canvas frames to disk as JPEG, PNG or WebP images.
package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/maauso/framegrab/internal/media"
)

// Format is an output image format.
type Format string

const (
	// FormatJPEG writes baseline JPEG files.
	FormatJPEG Format = "jpg"
	// FormatPNG writes lossless PNG files. Quality is ignored.
	FormatPNG Format = "png"
	// FormatWebP writes WebP files through ffmpeg's libwebp encoder.
	FormatWebP Format = "webp"
)

// Static errors for encoding.
var (
	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("encode: unsupported format")
	// ErrEncode is matched by every EncodeError.
	ErrEncode = errors.New("encode: write failed")
)

// ParseFormat maps a user supplied name ("jpg", "jpeg", "png", "webp") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// FrameName returns the file name for output position n, e.g. "frame000007.jpg".
func FrameName(n int, f Format) string {
	return fmt.Sprintf("frame%06d.%s", n, f.Extension())
}

// Options configures a single encode.
type Options struct {
	Format Format
	// Quality is 0..100, higher is better. Out-of-range values are clamped.
	Quality int
}

// Encoder writes images to paths.
type Encoder interface {
	// Encode writes img to path. Failures are reported as *EncodeError and
	// never leave a partially written file at path.
	Encode(ctx context.Context, img image.Image, path string, opts Options) error
}

// EncodeError reports a failure to write a specific output file.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Is makes every EncodeError match ErrEncode.
func (e *EncodeError) Is(target error) bool {
	return target == ErrEncode
}

// ClampQuality limits q to 0..100.
func ClampQuality(q int) int {
	return max(0, min(100, q))
}

// Compile-time check that FileEncoder implements Encoder.
var _ Encoder = (*FileEncoder)(nil)

// FileEncoder encodes JPEG and PNG in process and delegates WebP to ffmpeg.
type FileEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFileEncoder creates a new FileEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFileEncoder(ffmpegPath string) *FileEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FileEncoder{ffmpegPath: ffmpegPath}
}

// Encode renders img into a temporary file next to path and renames it into
// place once complete.
func (e *FileEncoder) Encode(ctx context.Context, img image.Image, path string, opts Options) error {
	data, err := e.render(ctx, img, opts)
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	return nil
}

func (e *FileEncoder) render(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	quality := ClampQuality(opts.Quality)

	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("jpeg: %w", err)
		}
		return buf.Bytes(), nil
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
			return nil, fmt.Errorf("png: %w", err)
		}
		return buf.Bytes(), nil
	case FormatWebP:
		return e.renderWebP(ctx, img, quality)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// renderWebP pipes a lossless PNG through ffmpeg's libwebp encoder.
func (e *FileEncoder) renderWebP(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	var src bytes.Buffer
	if err := imaging.Encode(&src, img, imaging.PNG, imaging.PNGCompressionLevel(png.NoCompression)); err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}

	args := []string{
		"-v", "error",
		"-f", "png_pipe", // Input is a single PNG on stdin
		"-i", "-",
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(quality),
		"-frames:v", "1",
		"-f", "webp",
		"-",
	}
	out, err := media.Run(ctx, e.ffmpegPath, args, src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("webp: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("webp: ffmpeg produced no output")
	}
	return out, nil
}

// writeAtomic writes data to a temp file in path's directory and renames it.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
