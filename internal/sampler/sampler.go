// Package sampler chooses which source frames to extract from a video.
//
// Indices are spread uniformly over the whole source, first and last frame
// included, so a handful of samples still covers the entire timeline.
package sampler

import (
	"errors"
	"math"
)

// DefaultTargetFPS is the sampling rate used by automatic mode.
const DefaultTargetFPS = 20.0

// Static errors for index planning.
var (
	// ErrEmptySource is returned when the source reports zero frames.
	ErrEmptySource = errors.New("sampler: source has no frames")
	// ErrInvalidCount is returned when fewer than one sample is requested.
	ErrInvalidCount = errors.New("sampler: desired count must be at least 1")
)

// Plan returns desiredCount frame indices spread uniformly over
// [0, totalFrames-1]. A request for more samples than the source holds is
// clamped to totalFrames. The sequence is non-decreasing and may repeat an
// index; repeats are intentional and each one maps to one output file.
func Plan(totalFrames, desiredCount int) ([]int, error) {
	if totalFrames <= 0 {
		return nil, ErrEmptySource
	}
	if desiredCount < 1 {
		return nil, ErrInvalidCount
	}

	count := min(desiredCount, totalFrames)
	if count == 1 {
		return []int{0}, nil
	}

	// Integer arithmetic keeps the endpoints exact: index[0] == 0 and
	// index[count-1] == totalFrames-1.
	span := int64(totalFrames - 1)
	steps := int64(count - 1)
	indices := make([]int, count)
	for i := range indices {
		indices[i] = int(int64(i) * span / steps)
	}
	return indices, nil
}

// AutoCount derives a sample count from the source duration and a target
// sampling rate: round(totalFrames/fps * targetFPS). The result is never
// below 1, so sources with an unknown frame rate still yield one sample.
// Clamping to totalFrames is left to Plan.
func AutoCount(totalFrames int, fps, targetFPS float64) int {
	if totalFrames <= 0 || fps <= 0 || targetFPS <= 0 {
		return 1
	}
	duration := float64(totalFrames) / fps
	return max(1, int(math.Round(duration*targetFPS)))
}
