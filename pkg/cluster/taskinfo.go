package cluster

import (
	"fmt"

	shellwords "github.com/kballard/go-shellquote"

	"github.com/skytix/rexe/pkg/types"
)

const taskName = "rexe-command"

// BuildTaskInfo constructs the single TaskInfo rexe ever launches (spec
// §6.3). taskID is a freshly generated identifier (pkg/scheduler generates
// it with uuid.New()); windowSize is only consulted for Interactive runs.
func BuildTaskInfo(req types.RequestedTaskInfo, offer types.Offer, taskID string, windowSize WindowSize) (TaskInfo, error) {
	task := TaskInfo{
		Name:      taskName,
		TaskID:    TaskID{Value: taskID},
		AgentID:   AgentID{Value: offer.AgentID},
		Resources: buildResources(req),
	}

	command, err := buildCommand(req)
	if err != nil {
		return TaskInfo{}, fmt.Errorf("cluster: building command: %w", err)
	}
	task.Command = command

	if req.Executor == types.ExecutorContainer {
		task.Container = buildContainerInfo(req, windowSize)
	}

	return task, nil
}

func buildResources(req types.RequestedTaskInfo) []Resource {
	resources := []Resource{
		scalarResource("cpus", req.CPUs),
		scalarResource("mem", req.MemMiB),
	}
	if req.DiskMiB > 0 {
		resources = append(resources, scalarResource("disk", req.DiskMiB))
	}
	if req.GPUs > 0 {
		resources = append(resources, scalarResource("gpus", req.GPUs))
	}
	return resources
}

func buildCommand(req types.RequestedTaskInfo) (*CommandInfo, error) {
	cmd := &CommandInfo{Shell: req.Shell}

	if req.Shell {
		cmd.Value = req.Args
	} else {
		tokens, err := shellwords.Split(req.Args)
		if err != nil {
			return nil, fmt.Errorf("splitting command line %q: %w", req.Args, err)
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("empty command line")
		}
		cmd.Value = tokens[0]
		cmd.Arguments = tokens[1:]
	}

	if len(req.Env) > 0 {
		vars := make([]EnvVar, 0, len(req.Env))
		for name, value := range req.Env {
			vars = append(vars, EnvVar{Name: name, Value: value})
		}
		cmd.Environment = &Environment{Variables: vars}
	}

	return cmd, nil
}

func buildContainerInfo(req types.RequestedTaskInfo, windowSize WindowSize) *ContainerInfo {
	ci := &ContainerInfo{
		Type: "DOCKER",
		Docker: &DockerInfo{
			Image:          req.ImageName,
			Network:        "BRIDGE",
			ForcePullImage: req.ForcePull,
		},
	}

	for _, v := range req.Volumes {
		ci.Volumes = append(ci.Volumes, Volume{
			HostPath:      v.HostPath,
			ContainerPath: v.ContainerPath,
			Mode:          string(v.Mode),
		})
	}

	if req.TTYMode == types.Interactive {
		ci.TTYInfo = &TTYInfo{WindowSize: &windowSize}
	}

	return ci
}
