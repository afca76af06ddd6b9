package main

import (
	"os"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"

	"github.com/skytix/rexe/pkg/scheduler"
)

// colorsEnabled mirrors fatih/color's own TTY detection so forcing a
// specific color.NoColor value stays testable and consistent whether
// stdout is redirected to a file or a pipe.
var colorsEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func init() {
	color.NoColor = !colorsEnabled
}

// reportExit prints the one-line human-readable summary of how the run
// ended; this is the thin CLI-reporting adapter named out of core scope.
func reportExit(code int) {
	switch code {
	case scheduler.ExitSuccess:
		color.New(color.FgGreen).Fprintln(os.Stderr, "task finished")
	case scheduler.ExitTimeout:
		color.New(color.FgRed).Fprintln(os.Stderr, "timed out waiting for an acceptable resource offer")
	case scheduler.ExitUnexpectedState:
		color.New(color.FgRed).Fprintln(os.Stderr, "wait-deadline timer observed an unexpected scheduler state")
	default:
		color.New(color.FgRed).Fprintln(os.Stderr, "task did not finish successfully")
	}
}

// reportFatal prints a fatal error to stderr in red, bypassing the
// scheduler entirely (CLI validation or cobra usage errors).
func reportFatal(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
}
