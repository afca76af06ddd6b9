package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	shellwords "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skytix/rexe/pkg/cluster"
	"github.com/skytix/rexe/pkg/types"
)

const (
	fallbackWindowRows    = 40
	fallbackWindowColumns = 120
)

// registerRequestFlags wires every flag named in §10 of the spec onto cmd.
func registerRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("attr", nil, "agent attribute predicate name=value or name=/regex/ (repeatable)")
	cmd.Flags().String("cpus", "1", "CPUs to request (bare number or human size, e.g. 0.5)")
	cmd.Flags().String("memory", "256m", "memory to request, MiB or human size (e.g. 512m, 2g)")
	cmd.Flags().String("disk", "0", "disk to request, MiB or human size")
	cmd.Flags().String("gpus", "0", "GPUs to request")
	cmd.Flags().StringArray("env", nil, "environment variable K=V (repeatable)")
	cmd.Flags().Bool("force-pull", false, "force the agent to re-pull the container image")
	cmd.Flags().Bool("tty", false, "use the interactive (attach-container-output) console instead of headless polling")
	cmd.Flags().Int("timeout", 60, "seconds to wait for a usable offer; <=0 means unbounded")
	cmd.Flags().Bool("shell", false, "pass the command line to the agent as a single shell command")
	cmd.Flags().StringArray("volume", nil, "volume mount host:container[:RO|RW] (repeatable, default RW)")
	cmd.Flags().BoolP("verbose", "v", false, "log call bodies, offer contents, and state transitions")
	cmd.Flags().Bool("capture-stderr", false, "also stream the task's stderr")
	cmd.Flags().String("metrics-addr", "", "optional host:port to expose Prometheus metrics on")
}

// validatePositionalArgs enforces the master/executor/[image] positional
// shape: image is required when the executor selector is "container".
func validatePositionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("expected at least <master> <container|shell>, got %d argument(s)", len(args))
	}

	executor := types.Executor(args[1])
	switch executor {
	case types.ExecutorContainer:
		if len(args) < 3 {
			return fmt.Errorf("an image name is required when executor is %q", types.ExecutorContainer)
		}
	case types.ExecutorShell:
	default:
		return fmt.Errorf("invalid executor %q: expected %q or %q", args[1], types.ExecutorContainer, types.ExecutorShell)
	}

	return nil
}

// buildRequest parses cmd's flags and positional args into a master
// endpoint and a fully validated types.RequestedTaskInfo. Trailing argv
// (everything after the "--" separator) becomes req.Args.
func buildRequest(cmd *cobra.Command, args []string) (string, types.RequestedTaskInfo, error) {
	masterEndpoint := args[0]
	executor := types.Executor(args[1])

	var imageName string
	var commandArgs []string
	if executor == types.ExecutorContainer {
		if len(args) < 3 {
			return "", types.RequestedTaskInfo{}, fmt.Errorf("an image name is required when executor is %q", types.ExecutorContainer)
		}
		imageName = args[2]
		commandArgs = args[3:]
	} else {
		commandArgs = args[2:]
	}
	if len(commandArgs) == 0 {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("no command given; pass it after --")
	}

	cpus, err := parseResourceValue(mustString(cmd, "cpus"))
	if err != nil {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--cpus: %w", err)
	}
	if cpus <= 0 {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--cpus must be > 0")
	}

	memMiB, err := parseResourceValue(mustString(cmd, "memory"))
	if err != nil {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--memory: %w", err)
	}
	if memMiB <= 0 {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--memory must be > 0")
	}

	diskMiB, err := parseResourceValue(mustString(cmd, "disk"))
	if err != nil {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--disk: %w", err)
	}
	if diskMiB < 0 {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--disk must be >= 0")
	}

	gpus, err := parseResourceValue(mustString(cmd, "gpus"))
	if err != nil {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--gpus: %w", err)
	}
	if gpus < 0 {
		return "", types.RequestedTaskInfo{}, fmt.Errorf("--gpus must be >= 0")
	}

	attrFlags, _ := cmd.Flags().GetStringArray("attr")
	attrs := make([]types.AttrPredicate, 0, len(attrFlags))
	for _, a := range attrFlags {
		pred, err := types.ParseAttrPredicate(a)
		if err != nil {
			return "", types.RequestedTaskInfo{}, err
		}
		attrs = append(attrs, pred)
	}

	envFlags, _ := cmd.Flags().GetStringArray("env")
	env := make(map[string]string, len(envFlags))
	for _, e := range envFlags {
		name, value, ok := strings.Cut(e, "=")
		if !ok {
			return "", types.RequestedTaskInfo{}, fmt.Errorf("invalid --env %q: expected K=V", e)
		}
		env[name] = value
	}

	volumeFlags, _ := cmd.Flags().GetStringArray("volume")
	volumes := make([]types.VolumeMount, 0, len(volumeFlags))
	for _, v := range volumeFlags {
		vol, err := types.ParseVolumeMount(v)
		if err != nil {
			return "", types.RequestedTaskInfo{}, err
		}
		volumes = append(volumes, vol)
	}

	shell, _ := cmd.Flags().GetBool("shell")
	tty, _ := cmd.Flags().GetBool("tty")
	timeout, _ := cmd.Flags().GetInt("timeout")
	forcePull, _ := cmd.Flags().GetBool("force-pull")
	captureStderr, _ := cmd.Flags().GetBool("capture-stderr")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var argsLine string
	if shell {
		argsLine = strings.Join(commandArgs, " ")
	} else {
		argsLine = shellwords.Join(commandArgs...)
	}

	ttyMode := types.Headless
	if tty {
		ttyMode = types.Interactive
	}

	req := types.RequestedTaskInfo{
		Executor:    executor,
		ImageName:   imageName,
		CPUs:        cpus,
		MemMiB:      memMiB,
		DiskMiB:     diskMiB,
		GPUs:        gpus,
		Args:        argsLine,
		Env:         env,
		Verbose:     verbose,
		TTYMode:     ttyMode,
		Attrs:       attrs,
		Volumes:     volumes,
		ForcePull:   forcePull,
		CaptureErr:  captureStderr,
		Shell:       shell,
		WaitTimeout: float64(timeout),
	}

	return masterEndpoint, req, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// parseResourceValue accepts a bare number (interpreted as-is: cpu count,
// MiB, or GPU count) or a Docker-style human size (e.g. "512m", "2g"),
// which is converted to the equivalent count of mebibytes.
func parseResourceValue(s string) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	bytes, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", s, err)
	}
	return float64(bytes) / (1024 * 1024), nil
}

// detectWindowSize captures the local terminal's size once for an
// Interactive run's TTYInfo, falling back to a fixed size when stdout
// isn't a terminal or its size can't be read (spec §6.3).
func detectWindowSize(req types.RequestedTaskInfo) cluster.WindowSize {
	if req.TTYMode != types.Interactive {
		return cluster.WindowSize{}
	}

	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols <= 0 || rows <= 0 {
		return cluster.WindowSize{Rows: fallbackWindowRows, Columns: fallbackWindowColumns}
	}
	return cluster.WindowSize{Rows: uint32(rows), Columns: uint32(cols)}
}
