package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/maauso/framegrab/internal/extract"
)

// previewFiles is how many written file names the summary lists.
const previewFiles = 3

var printer = message.NewPrinter(language.English)

func writeInfo(w io.Writer, info *extract.Info) {
	meta := info.Metadata
	fmt.Fprintf(w, "File: %s\n", filepath.Base(meta.Path))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(meta.DurationSeconds()))
	fmt.Fprintf(w, "FPS: %.2f\n", meta.FPS)
	fmt.Fprintf(w, "Total frames: %s\n", groupThousands(meta.FrameCount))
	fmt.Fprintf(w, "Resolution: %dx%d\n", meta.Width, meta.Height)
	if meta.Codec != "" {
		fmt.Fprintf(w, "Codec: %s\n", meta.Codec)
	}
	fmt.Fprintf(w, "Suggested frame count: %s\n", groupThousands(info.Suggested))
}

func writeSummary(w io.Writer, r *extract.Report) {
	if r.Metadata.FrameCount > 0 {
		fmt.Fprintf(w, "Source: %s, %s frames at %.2f fps (%dx%d)\n",
			filepath.Base(r.Metadata.Path),
			groupThousands(r.Metadata.FrameCount),
			r.Metadata.FPS,
			r.Metadata.Width, r.Metadata.Height,
		)
		if r.Auto {
			fmt.Fprintf(w, "Automatic frame count: %s\n", groupThousands(r.Suggested))
		} else {
			fmt.Fprintf(w, "Requested %s frames (suggested: %s)\n", groupThousands(r.Requested), groupThousands(r.Suggested))
		}
	}

	fmt.Fprintf(w, "Frames extracted successfully: %d/%d\n", r.Written(), r.Planned)
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "Failed frames: %d\n", len(r.Failures))
	}
	if r.Written() == 0 {
		return
	}

	fmt.Fprintf(w, "Output directory: %s\n", r.OutputDir)
	for _, f := range r.Files[:min(previewFiles, len(r.Files))] {
		fmt.Fprintf(w, "  %s\n", filepath.Base(f))
	}
	if more := len(r.Files) - previewFiles; more > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", more)
	}
	fmt.Fprintf(w, "Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))
}

// formatDuration renders seconds as "1m 5.2s" or "5.2s".
func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
}

func groupThousands(n int) string {
	return printer.Sprintf("%d", n)
}
