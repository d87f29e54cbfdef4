package extract

import (
	"context"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/maauso/framegrab/internal/canvas"
	"github.com/maauso/framegrab/internal/media"
)

// Sample is one element of the extraction sequence.
type Sample struct {
	// Position is the zero-based place in the sequence.
	Position int
	// Index is the source frame index.
	Index int
	// Canvas is the fitted frame. It is nil when the sample failed.
	Canvas *image.NRGBA
}

// Iterator yields fitted canvases for a planned index sequence, in order and
// exactly once each. It holds at most one canvas, reused when the next index
// repeats the previous one. An Iterator is not safe for concurrent use.
type Iterator struct {
	src     media.Source
	indices []int
	width   int
	height  int
	filter  imaging.ResampleFilter

	pos       int
	last      *image.NRGBA
	lastIndex int
}

// NewIterator creates an Iterator over indices decoded from src and fitted to
// a width x height canvas with the Lanczos4 filter.
func NewIterator(src media.Source, indices []int, width, height int) *Iterator {
	return &Iterator{
		src:     src,
		indices: indices,
		width:   width,
		height:  height,
		filter:  canvas.Lanczos4,
	}
}

// Len returns the total number of elements in the sequence.
func (it *Iterator) Len() int {
	return len(it.indices)
}

// Next decodes and fits the next element. Per-frame failures are returned as
// *FrameError together with a Sample carrying the failed position and index;
// the iterator has already advanced past it. After the last element Next
// returns io.EOF forever. A cancelled context is returned as is.
func (it *Iterator) Next(ctx context.Context) (Sample, error) {
	if it.pos >= len(it.indices) {
		return Sample{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	pos, idx := it.pos, it.indices[it.pos]
	it.pos++

	if it.last != nil && idx == it.lastIndex {
		return Sample{Position: pos, Index: idx, Canvas: it.last}, nil
	}
	it.last = nil

	frame, err := it.src.FrameAt(ctx, idx)
	if err != nil {
		if ctx.Err() != nil {
			return Sample{}, ctx.Err()
		}
		return Sample{Position: pos, Index: idx}, &FrameError{Position: pos, Index: idx, Stage: StageDecode, Err: err}
	}

	c, err := canvas.Compose(frame, it.width, it.height, it.filter)
	if err != nil {
		return Sample{Position: pos, Index: idx}, &FrameError{Position: pos, Index: idx, Stage: StageFit, Err: err}
	}

	it.last, it.lastIndex = c, idx
	return Sample{Position: pos, Index: idx, Canvas: c}, nil
}
