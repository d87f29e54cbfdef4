// Package media provides access to video sources: probing their metadata and
// decoding individual frames by index.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Static errors for media operations.
var (
	// ErrSourceUnreadable is returned when a video cannot be opened or inspected.
	ErrSourceUnreadable = errors.New("media: source unreadable")
	// ErrDecode is matched by every DecodeError.
	ErrDecode = errors.New("media: decode failed")
	// ErrSourceClosed is returned when a closed source is asked for a frame.
	ErrSourceClosed = errors.New("media: source closed")
	// ErrIndexOutOfRange is returned for frame indices outside the source.
	ErrIndexOutOfRange = errors.New("media: frame index out of range")
)

// Metadata describes a video source. It is produced once when the source is
// opened and never changes afterwards.
type Metadata struct {
	// Path is the file the metadata was read from.
	Path string
	// FrameCount is the number of frames in the first video stream.
	FrameCount int
	// FPS is the average frame rate.
	FPS float64
	// Width and Height are the coded frame dimensions.
	Width  int
	Height int
	// Codec is the decoder name reported by ffprobe, e.g. "h264".
	Codec string
}

// DurationSeconds returns FrameCount / FPS, or 0 when the rate is unknown.
func (m Metadata) DurationSeconds() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.FrameCount) / m.FPS
}

// Source is an opened video that can decode frames by index.
// Implementations are not safe for concurrent use.
type Source interface {
	// Metadata returns the metadata read when the source was opened.
	Metadata() Metadata

	// FrameAt decodes the frame at the given zero-based index.
	// Failures are reported as *DecodeError.
	FrameAt(ctx context.Context, index int) (image.Image, error)

	// Close releases the source. Further FrameAt calls fail with ErrSourceClosed.
	Close() error
}

// Opener opens video sources by path.
type Opener interface {
	// Open inspects path and returns a ready Source.
	// Failures wrap ErrSourceUnreadable.
	Open(ctx context.Context, path string) (Source, error)
}

// WithSource opens path, hands the source to fn and closes it on every exit
// path. A close failure is reported only when fn itself succeeded.
func WithSource(ctx context.Context, o Opener, path string, fn func(Source) error) (err error) {
	src, err := o.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close source: %w", cerr)
		}
	}()
	return fn(src)
}

// DecodeError reports a failure to decode a specific frame.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes every DecodeError match ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
