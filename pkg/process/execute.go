package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

// ExecutionConfig describes how a daemon process is invoked.
type ExecutionConfig struct {
	ExecutablePath   string   `yaml:"executable_path"`
	Args             []string `yaml:"args,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
}

// ValidateExecutionConfig checks an execution configuration before use.
func ValidateExecutionConfig(execution ExecutionConfig) error {
	if execution.ExecutablePath == "" {
		return errors.NewValidationError("executable path cannot be empty", nil)
	}
	if !filepath.IsAbs(execution.ExecutablePath) {
		if _, err := exec.LookPath(execution.ExecutablePath); err != nil {
			return errors.NewValidationError("executable not found in PATH", err).
				WithContext("executable_path", execution.ExecutablePath)
		}
	}
	return nil
}

// Start launches a daemon process in its own process group. The daemons
// write their own logs; stdout and stderr are inherited rather than
// piped so a wedged supervisor can never backpressure a daemon.
//
// The process is deliberately not bound to ctx: cancelling the startup
// context must not kill a running daemon. Termination goes through the
// returned process handle, SIGTERM first, so daemons get their graceful
// stop even when the supervisor itself was signalled.
func Start(ctx context.Context, execution ExecutionConfig, id string, logger logging.Logger) (*os.Process, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
	}
	if err := ValidateExecutionConfig(execution); err != nil {
		return nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	workDir := execution.WorkingDirectory
	if workDir == "" && filepath.IsAbs(execution.ExecutablePath) {
		workDir = filepath.Dir(execution.ExecutablePath)
	}

	logger.Debugf("Executing process, id: %s, executable path: '%s', args: %v, working directory: '%s'",
		id, execution.ExecutablePath, execution.Args, workDir)

	env := os.Environ()
	env = append(env, execution.Environment...)

	cmd := exec.Command(execution.ExecutablePath, execution.Args...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProcessError("failed to start the process", err).
			WithContext("id", id).
			WithContext("executable_path", execution.ExecutablePath)
	}

	// Reap the child when it exits so it never lingers as a zombie while
	// the supervisor keeps running.
	go func() {
		_ = cmd.Wait()
	}()

	logger.Infof("Successfully executed process, id: %s, PID: %d", id, cmd.Process.Pid)
	return cmd.Process, nil
}

// RunCommand executes a short-lived command (syntax checks, graceful-stop
// commands) under the given context and returns its combined output.
// Context expiry is reported as a timeout error, never as a crash.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return string(output), errors.NewTimeoutError("command timed out", ctx.Err()).
			WithContext("command", name)
	}
	if err != nil {
		return string(output), errors.NewProcessError("command failed", err).
			WithContext("command", name)
	}
	return string(output), nil
}
