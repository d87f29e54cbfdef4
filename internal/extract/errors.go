package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for extraction.
var (
	// ErrNothingWritten is returned when a run finishes without writing any frame.
	ErrNothingWritten = errors.New("extract: no frames were written")
	// ErrInvalidOptions is returned for out-of-range Options values.
	ErrInvalidOptions = errors.New("extract: invalid options")
	// ErrInvalidPolicy is returned for unknown error policy names.
	ErrInvalidPolicy = errors.New("extract: invalid error policy")
)

// ErrorPolicy decides what happens after a per-frame failure.
type ErrorPolicy string

const (
	// PolicySkip records the failure and continues with the next sample.
	PolicySkip ErrorPolicy = "skip"
	// PolicyAbort stops the run at the first failed sample.
	PolicyAbort ErrorPolicy = "abort"
)

// ParseErrorPolicy maps "skip" or "abort" to an ErrorPolicy.
func ParseErrorPolicy(name string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case PolicySkip, PolicyAbort:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

// Stage names the step of the decode, fit, encode cycle that failed.
type Stage string

const (
	StageDecode Stage = "decode"
	StageFit    Stage = "fit"
	StageEncode Stage = "encode"
)

// FrameError reports a failure for one element of the sample sequence.
type FrameError struct {
	// Position is the element's place in the sample sequence (and its file number).
	Position int
	// Index is the source frame index that was sampled.
	Index int
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d (source index %d): %s: %v", e.Position, e.Index, e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
