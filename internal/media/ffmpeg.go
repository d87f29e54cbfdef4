package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Compile-time check that FFmpegDecoder implements Opener.
var _ Opener = (*FFmpegDecoder)(nil)

// FFmpegDecoder opens video sources using the ffprobe and ffmpeg CLIs.
type FFmpegDecoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegDecoder(ffmpegPath, ffprobePath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Open inspects path and returns a Source that decodes frames on demand.
func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Source, error) {
	meta, err := d.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	return &ffmpegSource{decoder: d, meta: meta}, nil
}

// Inspect reads the metadata of the first video stream in path.
func (d *FFmpegDecoder) Inspect(ctx context.Context, path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return Metadata{}, fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, path)
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,r_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		path,
	}
	out, err := Run(ctx, d.ffprobePath, args, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	meta, err := parseStreamInfo(out)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	meta.Path = path
	return meta, nil
}

// streamInfo mirrors the subset of ffprobe's JSON output we request.
type streamInfo struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseStreamInfo converts ffprobe JSON into Metadata. When the container
// does not store a frame count, it is estimated from duration and rate.
func parseStreamInfo(data []byte) (Metadata, error) {
	var out streamInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Metadata{}, errors.New("no video stream found")
	}
	s := out.Streams[0]

	fps := parseFrameRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(s.RFrameRate)
	}
	// Frames are addressed by time, so a stream without a rate cannot
	// be sampled.
	if fps <= 0 {
		return Metadata{}, fmt.Errorf("no usable frame rate (avg %q, r %q)", s.AvgFrameRate, s.RFrameRate)
	}

	frames, err := strconv.Atoi(strings.TrimSpace(s.NbFrames))
	if err != nil || frames <= 0 {
		duration := parseSeconds(s.Duration)
		if duration <= 0 {
			duration = parseSeconds(out.Format.Duration)
		}
		frames = int(math.Round(duration * fps))
	}

	return Metadata{
		FrameCount: max(frames, 0),
		FPS:        fps,
		Width:      s.Width,
		Height:     s.Height,
		Codec:      s.CodecName,
	}, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
// Unparseable or undefined rates ("0/0") yield 0.
func parseFrameRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0
	}
	num, den, ok := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	dv, err := strconv.ParseFloat(den, 64)
	if err != nil || dv == 0 {
		return 0
	}
	return n / dv
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ffmpegSource decodes single frames by seeking to their timestamp.
type ffmpegSource struct {
	decoder *FFmpegDecoder
	meta    Metadata
	closed  bool
}

func (s *ffmpegSource) Metadata() Metadata {
	return s.meta
}

// FrameAt seeks to index/fps and decodes one frame as PNG over a pipe.
func (s *ffmpegSource) FrameAt(ctx context.Context, index int) (image.Image, error) {
	if s.closed {
		return nil, &DecodeError{Index: index, Err: ErrSourceClosed}
	}
	if index < 0 || index >= s.meta.FrameCount {
		return nil, &DecodeError{Index: index, Err: ErrIndexOutOfRange}
	}

	// Input seeking is frame accurate when transcoding. Inspect guarantees
	// a positive rate.
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(float64(index)/s.meta.FPS, 'f', 6, 64),
		"-i", s.meta.Path,
		"-frames:v", "1", // Output single frame
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	}

	out, err := Run(ctx, s.decoder.ffmpegPath, args, nil)
	if err != nil {
		return nil, &DecodeError{Index: index, Err: err}
	}
	if len(out) == 0 {
		return nil, &DecodeError{Index: index, Err: errors.New("ffmpeg produced no frame")}
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &DecodeError{Index: index, Err: fmt.Errorf("decode png: %w", err)}
	}
	return img, nil
}

func (s *ffmpegSource) Close() error {
	s.closed = true
	return nil
}

// Run executes an ffmpeg-family binary and returns its stdout, feeding stdin
// when non-nil. On failure the error is an *FFmpegError carrying stderr,
// unless the context was cancelled.
func Run(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
	// #nosec G204 - binary paths come from configuration, not request input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", bin, ctx.Err())
		}
		return nil, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
