package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/skytix/rexe/pkg/log"
	"github.com/skytix/rexe/pkg/metrics"
	"github.com/skytix/rexe/pkg/scheduler"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr exitError
		if asExitError(err, &exitErr) {
			reportFatal(exitErr.err)
			os.Exit(exitErr.code)
		}
		reportFatal(err)
		os.Exit(scheduler.ExitFailed)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rexe <master> <container|shell> [image] -- <command> [args...]",
	Short: "Run exactly one task on a cluster and stream its output",
	Long: `rexe registers as a one-shot scheduling framework with a cluster's master, waits
for a suitable resource offer, launches a single task on the offered agent, streams the
task's stdout (and optionally stderr) to this terminal, and exits with a status code that
reflects the task's final state.`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	Args:          validatePositionalArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	registerRequestFlags(rootCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	verbose, _ := rootCmd.Flags().GetBool("verbose")
	if verbose {
		logLevel = "debug"
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func run(cmd *cobra.Command, args []string) error {
	masterEndpoint, req, err := buildRequest(cmd, args)
	if err != nil {
		return exitError{code: scheduler.ExitFailed, err: err}
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		startMetricsServer(metricsAddr)
	}

	windowSize := detectWindowSize(req)

	logger := log.WithComponent("scheduler")
	sched := scheduler.New(logger)
	code := sched.Run(context.Background(), masterEndpoint, req, windowSize, os.Stdout, os.Stderr)

	// The scheduler has already torn down and wants the process to exit
	// with code; reportExit is the only remaining CLI-layer step, so exit
	// directly rather than threading the code back through cobra's error
	// return (which would print a second, redundant "error:" line).
	reportExit(code)
	os.Exit(code)
	return nil
}

// startMetricsServer exposes the Prometheus handler on a short-lived HTTP
// server; rexe never waits on it, it simply gives an operator something to
// scrape with curl before the process tears down (spec §3.2).
func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

func asExitError(err error, target *exitError) bool {
	if ee, ok := err.(exitError); ok {
		*target = ee
		return true
	}
	return false
}
