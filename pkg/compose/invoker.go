package compose

import (
	"context"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/process"
	"github.com/core-tools/hsu-compose/pkg/units"
)

// DockerExecutable is the CLI every invocation goes through
const DockerExecutable = "docker"

// BuildArgs composes the docker argument vector for a compose subcommand:
//
//	compose [--env-file F] -f FILE [--profile P] [-p PROJECT] SUB...
//
// Empty optional flags are left out entirely.
func BuildArgs(effective units.EffectiveConfig, sub ...string) []string {
	args := make([]string, 0, 9+len(sub))
	args = append(args, "compose")
	if effective.EnvFile != "" {
		args = append(args, "--env-file", effective.EnvFile)
	}
	args = append(args, "-f", effective.ComposeFile)
	if effective.ComposeProfile != "" {
		args = append(args, "--profile", effective.ComposeProfile)
	}
	if effective.ProjectName != "" {
		args = append(args, "-p", effective.ProjectName)
	}
	return append(args, sub...)
}

// BuildServiceArgs is BuildArgs with the effective service name appended
func BuildServiceArgs(effective units.EffectiveConfig, sub ...string) []string {
	args := BuildArgs(effective, sub...)
	if effective.ServiceName != "" {
		args = append(args, effective.ServiceName)
	}
	return args
}

// Invoker runs docker compose operations for a unit's effective config.
// Every operation returns the child exit code; err is set only when the
// process could not be spawned.
type Invoker struct {
	runner process.Runner
	logger logging.Logger
}

func NewInvoker(runner process.Runner, logger logging.Logger) *Invoker {
	return &Invoker{
		runner: runner,
		logger: logger,
	}
}

// Runner exposes the underlying runner for plain docker commands
func (i *Invoker) Runner() process.Runner {
	return i.runner
}

func (i *Invoker) Up(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "up", "-d"), onStdout, onStderr)
}

func (i *Invoker) Stop(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "stop"), onStdout, onStderr)
}

func (i *Invoker) Restart(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "restart"), onStdout, onStderr)
}

func (i *Invoker) BuildNoCache(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "build", "--no-cache"), onStdout, onStderr)
}

// LogsFollow blocks until ctx is cancelled or compose exits
func (i *Invoker) LogsFollow(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "logs", "-f"), onStdout, onStderr)
}

func (i *Invoker) RmForce(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildServiceArgs(effective, "rm", "-f"), onStdout, onStderr)
}

// Down is project scoped and never names a service
func (i *Invoker) Down(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildArgs(effective, "down"), onStdout, onStderr)
}

// Wipe removes the project's containers, volumes and orphans
func (i *Invoker) Wipe(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error) {
	return i.run(ctx, BuildArgs(effective, "down", "-v", "--remove-orphans"), onStdout, onStderr)
}

// PsQuiet returns the first container id compose reports for the effective
// service, or "" when there is none or compose fails
func (i *Invoker) PsQuiet(ctx context.Context, effective units.EffectiveConfig) (string, error) {
	var id string
	code, err := i.run(ctx, BuildServiceArgs(effective, "ps", "-q"), func(line string) {
		if id == "" {
			id = strings.TrimSpace(line)
		}
	}, nil)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", nil
	}
	return id, nil
}

// ResolveContainer returns the explicit container name, or the id found by
// PsQuiet
func (i *Invoker) ResolveContainer(ctx context.Context, effective units.EffectiveConfig) (string, error) {
	if effective.ContainerName != "" {
		return effective.ContainerName, nil
	}

	id, err := i.PsQuiet(ctx, effective)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.NewNotFoundError("no container found for unit "+effective.UnitID+" (service "+effective.ServiceName+")", nil).
			WithContext("unit", effective.UnitID).
			WithContext("service", effective.ServiceName)
	}
	return id, nil
}

// Exec runs command inside the unit's container through bash -lc.
// No exec process is spawned when the container cannot be resolved.
func (i *Invoker) Exec(ctx context.Context, effective units.EffectiveConfig, command string, onStdout, onStderr process.LineHandler) (int, error) {
	ref, err := i.ResolveContainer(ctx, effective)
	if err != nil {
		return 0, err
	}

	i.logger.Infof("Exec, unit: %s, %s", effective.UnitID, ExecCommandLine(ref, command))

	// argv delivers the command verbatim, which is what the quoted form decodes to
	return i.run(ctx, []string{"exec", ref, "bash", "-lc", command}, onStdout, onStderr)
}

func (i *Invoker) run(ctx context.Context, args []string, onStdout, onStderr process.LineHandler) (int, error) {
	i.logger.Debugf("Running: %s %s", DockerExecutable, strings.Join(args, " "))

	code, err := i.runner.Run(ctx, DockerExecutable, args, onStdout, onStderr)
	if err != nil {
		i.logger.Errorf("Failed to spawn %s: %v", DockerExecutable, err)
		return code, err
	}
	if code != 0 {
		i.logger.Warnf("Command exited with code %d: %s %s", code, DockerExecutable, strings.Join(args, " "))
	}
	return code, nil
}
