package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/framegrab/internal/media"
)

func TestIterator_YieldsInOrderOnce(t *testing.T) {
	src := newMemorySource(10, 100, 100, 10)
	it := NewIterator(src, []int{0, 3, 6, 9}, 50, 50)
	ctx := context.Background()
	assert.Equal(t, 4, it.Len())

	for pos, idx := range []int{0, 3, 6, 9} {
		s, err := it.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, pos, s.Position)
		assert.Equal(t, idx, s.Index)
		require.NotNil(t, s.Canvas)
		assert.Equal(t, 50, s.Canvas.Bounds().Dx())
		assert.Equal(t, 50, s.Canvas.Bounds().Dy())
	}

	for range 3 {
		_, err := it.Next(ctx)
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, 4, src.decodes[0]+src.decodes[3]+src.decodes[6]+src.decodes[9])
}

func TestIterator_ReusesRepeatedIndex(t *testing.T) {
	src := newMemorySource(4, 20, 10, 10)
	it := NewIterator(src, []int{0, 0, 2, 2, 2, 3}, 40, 40)
	ctx := context.Background()

	var samples []Sample
	for {
		s, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		samples = append(samples, s)
	}

	require.Len(t, samples, 6)
	assert.Equal(t, 1, src.decodeCount(0))
	assert.Equal(t, 1, src.decodeCount(2))
	assert.Equal(t, 1, src.decodeCount(3))
	assert.Same(t, samples[0].Canvas, samples[1].Canvas)
	assert.Same(t, samples[2].Canvas, samples[4].Canvas)
	assert.NotSame(t, samples[1].Canvas, samples[2].Canvas)

	for i, s := range samples {
		assert.Equal(t, i, s.Position)
	}
}

func TestIterator_FailedRepeatIsRetried(t *testing.T) {
	src := newMemorySource(4, 20, 20, 10)
	src.failAt[1] = errors.New("bad frame")
	it := NewIterator(src, []int{1, 1}, 10, 10)
	ctx := context.Background()

	for pos := range 2 {
		s, err := it.Next(ctx)
		var fe *FrameError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, pos, fe.Position)
		assert.Equal(t, pos, s.Position)
		assert.Nil(t, s.Canvas)
	}
	assert.Equal(t, 2, src.decodeCount(1))
}

func TestIterator_PaddedCanvas(t *testing.T) {
	// 1920x1080 onto 1200x680 scales to 1200x675 with two rows above.
	src := newMemorySource(1, 1920, 1080, 30)
	it := NewIterator(src, []int{0}, 1200, 680)

	s, err := it.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint8(0), s.Canvas.NRGBAAt(600, 0).R)
	assert.Equal(t, uint8(0), s.Canvas.NRGBAAt(600, 1).R)
	assert.Equal(t, frameColor(0), s.Canvas.NRGBAAt(600, 2))
	assert.Equal(t, frameColor(0), s.Canvas.NRGBAAt(600, 676))
	assert.Equal(t, uint8(0), s.Canvas.NRGBAAt(600, 677).R)
}

func TestIterator_CancelledContext(t *testing.T) {
	src := newMemorySource(4, 20, 20, 10)
	it := NewIterator(src, []int{0, 1}, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := it.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.decodeCount(0))
}

func TestIterator_ClosedSource(t *testing.T) {
	src := newMemorySource(4, 20, 20, 10)
	require.NoError(t, src.Close())
	it := NewIterator(src, []int{0}, 10, 10)

	_, err := it.Next(context.Background())
	assert.ErrorIs(t, err, media.ErrSourceClosed)
}
