package process

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// ExitCodeCancelled is returned by Run when the context was cancelled and the
// process tree was killed.
const ExitCodeCancelled = -1

const maxLineSize = 1024 * 1024

// LineHandler receives one output line with a trailing "\n".
// Handlers for stdout and stderr may be called concurrently.
type LineHandler func(line string)

// Runner launches an external command and streams its output line by line.
//
// A non-zero exit code is not an error: only a failure to spawn the process
// is returned as err.
type Runner interface {
	Run(ctx context.Context, executable string, args []string, onStdout, onStderr LineHandler) (int, error)
}

type RunnerOptions struct {
	// WorkingDirectory overrides the repository root lookup when set
	WorkingDirectory string
	// Environment is appended to the inherited environment as KEY=VALUE
	Environment []string
}

// Validate checks the overrides so a bad option fails before any spawn
func (o RunnerOptions) Validate() error {
	if err := ValidateWorkingDirectory(o.WorkingDirectory); err != nil {
		return err
	}
	return ValidateEnvironment(o.Environment)
}

type execRunner struct {
	options RunnerOptions
	logger  logging.Logger
}

func NewRunner(options RunnerOptions, logger logging.Logger) Runner {
	return &execRunner{
		options: options,
		logger:  logger,
	}
}

func (r *execRunner) Run(ctx context.Context, executable string, args []string, onStdout, onStderr LineHandler) (int, error) {
	if ctx == nil {
		return 0, errors.NewValidationError("context cannot be nil", nil).WithContext("executable", executable)
	}
	if err := ValidateCommand(executable, args); err != nil {
		return 0, err
	}
	if err := r.options.Validate(); err != nil {
		return 0, err
	}

	workDir := r.options.WorkingDirectory
	if workDir == "" {
		workDir = RepoRoot()
	}

	// Not CommandContext: cancellation must take down the whole tree, not just the leader
	cmd := exec.Command(executable, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), r.options.Environment...)
	setupProcessAttributes(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, errors.NewProcessError("failed to create stdout pipe", err).WithContext("executable", executable)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, errors.NewProcessError("failed to create stderr pipe", err).WithContext("executable", executable)
	}

	r.logger.Debugf("Running process, executable: %s, args: %v, working directory: '%s'", executable, args, workDir)

	if err := cmd.Start(); err != nil {
		return 0, errors.NewProcessError("failed to start the process", err).WithContext("executable", executable)
	}

	pid := cmd.Process.Pid

	var pumps errgroup.Group
	pumps.Go(func() error { return pumpLines(stdout, onStdout) })
	pumps.Go(func() error { return pumpLines(stderr, onStderr) })

	killed := false
	done := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-ctx.Done():
			killed = true
			r.logger.Infof("Context cancelled, killing process tree, PID: %d", pid)
			if err := killProcessTree(cmd.Process); err != nil {
				r.logger.Warnf("Failed to kill process tree, PID: %d, error: %v", pid, err)
			}
		case <-done:
		}
	}()

	if err := pumps.Wait(); err != nil {
		r.logger.Warnf("Output stream read failed, PID: %d, error: %v", pid, err)
	}
	waitErr := cmd.Wait()
	close(done)
	watcher.Wait()

	return r.exitResult(pid, killed, waitErr)
}

// exitResult maps the outcome of cmd.Wait. A kill only counts as a
// cancellation when the process did not already exit cleanly: the context
// may be cancelled between the child's exit and Wait returning.
func (r *execRunner) exitResult(pid int, killed bool, waitErr error) (int, error) {
	if waitErr == nil {
		r.logger.Debugf("Process exited, PID: %d, exit code: 0", pid)
		return 0, nil
	}

	if killed {
		r.logger.Debugf("Process cancelled, PID: %d", pid)
		return ExitCodeCancelled, nil
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		r.logger.Debugf("Process exited, PID: %d, exit code: %d", pid, exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	return 0, errors.NewProcessError("failed to wait for the process", waitErr).WithContext("pid", pid)
}

func pumpLines(stream io.Reader, handler LineHandler) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || handler == nil {
			continue
		}
		handler(line + "\n")
	}

	if err := scanner.Err(); err != nil {
		// keep draining so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, stream)
		return errors.NewIOError("failed to read process output", err)
	}
	return nil
}
