// Package main provides the framegrab command: frame extraction from the
// terminal, video inspection and the HTTP extraction service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/framegrab/internal/config"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitAborted     = 2
	exitInterrupted = 130
)

// errAborted marks a run that wrote some frames and then stopped on a
// failed frame under -on-error abort.
var errAborted = errors.New("extraction aborted")

const usage = `Usage:
  framegrab [extract] [flags] <video>   extract evenly spaced frames
  framegrab info [flags] <video>        print video details
  framegrab serve                       run the HTTP extraction service

Run "framegrab extract -help" for the extraction flags.

Exit status is 0 on success, 1 when no frame was written or on any other
error, 2 when -on-error abort stopped a run after some frames were written,
and 130 when interrupted.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	// Logs go to stderr so stdout only carries reports
	logger := cfg.NewLoggerTo(stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := splitCommand(args)
	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "info":
		err = runInfo(ctx, cfg, logger, rest, stdout, stderr)
	case "help":
		fmt.Fprint(stdout, usage)
	default:
		err = runExtract(ctx, cfg, logger, rest, stdout, stderr)
	}
	return exitCode(err, stderr)
}

// splitCommand separates the subcommand from its arguments. Anything that is
// not a known subcommand is treated as arguments to extract.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "extract", nil
	}
	switch args[0] {
	case "extract", "info", "serve", "help":
		return args[0], args[1:]
	case "-help", "--help":
		return "help", nil
	}
	return "extract", args
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Interrupted.")
		return exitInterrupted
	case errors.Is(err, errAborted):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitAborted
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
}
