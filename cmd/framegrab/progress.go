package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 40

// progressBar redraws a single terminal line on every update.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	drawn bool
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

// Update matches extract.Options.Progress.
func (b *progressBar) Update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.w, "\r%s", renderBar(done, total))
	b.drawn = true
}

// Finish ends the bar line.
func (b *progressBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawn {
		fmt.Fprintln(b.w)
		b.drawn = false
	}
}

// renderBar returns "Progress: [████░░…] 45.0% (45/100)".
func renderBar(done, total int) string {
	ratio := 0.0
	if total > 0 {
		ratio = min(1, max(0, float64(done)/float64(total)))
	}
	filled := int(ratio * barWidth)
	return fmt.Sprintf("Progress: [%s%s] %.1f%% (%d/%d)",
		strings.Repeat("█", filled),
		strings.Repeat("░", barWidth-filled),
		ratio*100, done, total,
	)
}
