package extract

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/mock"

	"github.com/maauso/framegrab/internal/encode"
	"github.com/maauso/framegrab/internal/media"
)

// memorySource is an in-memory video of solid-colored frames.
type memorySource struct {
	mu sync.Mutex

	meta    media.Metadata
	failAt  map[int]error
	emptyAt map[int]bool
	decodes map[int]int
	closed  bool
	// usedAfterClose is set if FrameAt runs after Close.
	usedAfterClose bool
}

func newMemorySource(frames, width, height int, fps float64) *memorySource {
	return &memorySource{
		meta: media.Metadata{
			Path:       "memory.mp4",
			FrameCount: frames,
			FPS:        fps,
			Width:      width,
			Height:     height,
			Codec:      "raw",
		},
		failAt:  map[int]error{},
		emptyAt: map[int]bool{},
		decodes: map[int]int{},
	}
}

// frameColor never returns black so padding is distinguishable.
func frameColor(index int) color.NRGBA {
	return color.NRGBA{R: 200, G: uint8(20 + index%200), B: 60, A: 255}
}

func (s *memorySource) Metadata() media.Metadata { return s.meta }

func (s *memorySource) FrameAt(_ context.Context, index int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.usedAfterClose = true
		return nil, &media.DecodeError{Index: index, Err: media.ErrSourceClosed}
	}
	if index < 0 || index >= s.meta.FrameCount {
		return nil, &media.DecodeError{Index: index, Err: media.ErrIndexOutOfRange}
	}
	s.decodes[index]++
	if err, ok := s.failAt[index]; ok {
		return nil, &media.DecodeError{Index: index, Err: err}
	}
	if s.emptyAt[index] {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	return imaging.New(s.meta.Width, s.meta.Height, frameColor(index)), nil
}

func (s *memorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySource) decodeCount(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodes[index]
}

func (s *memorySource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type memoryOpener struct {
	src *memorySource
	err error
}

func (o *memoryOpener) Open(_ context.Context, _ string) (media.Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

// recordingEncoder keeps every encoded canvas in memory.
type recordingEncoder struct {
	mu     sync.Mutex
	paths  []string
	images []*image.NRGBA
	failOn map[string]bool
}

func (e *recordingEncoder) Encode(_ context.Context, img image.Image, path string, _ encode.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOn[path] {
		return &encode.EncodeError{Path: path, Err: errors.New("disk full")}
	}
	e.paths = append(e.paths, path)
	e.images = append(e.images, img.(*image.NRGBA))
	return nil
}

// mockEncoder implements encode.Encoder for testing.
type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Encode(ctx context.Context, img image.Image, path string, opts encode.Options) error {
	args := m.Called(ctx, img, path, opts)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
