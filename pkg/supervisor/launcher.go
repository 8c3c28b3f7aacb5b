package supervisor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/metrics"
	processpkg "github.com/netboot-tools/pxe-supervisor/pkg/process"
)

const launchPollInterval = 100 * time.Millisecond

// Launcher starts managed daemons one at a time in descriptor order and
// confirms each is running before moving to the next. A failure stops
// the sequence; tearing down already-launched daemons is the caller's
// responsibility.
type Launcher struct {
	launchTimeout time.Duration
	collectors    *metrics.Metrics
	logger        logging.Logger
}

func NewLauncher(launchTimeout time.Duration, collectors *metrics.Metrics, logger logging.Logger) *Launcher {
	return &Launcher{
		launchTimeout: launchTimeout,
		collectors:    collectors,
		logger:        logger,
	}
}

// LaunchAll starts every descriptor in order, recording handles in the
// table as it goes. On failure the table still holds handles for the
// daemons that did start, so the caller can stop them.
func (l *Launcher) LaunchAll(ctx context.Context, descriptors []ServiceDescriptor, table *ProcessTable) error {
	for _, descriptor := range descriptors {
		if err := l.Launch(ctx, descriptor, table); err != nil {
			return err
		}
	}
	return nil
}

// Launch re-validates the daemon's configuration, starts the process,
// and waits for it to be confirmed running.
func (l *Launcher) Launch(ctx context.Context, descriptor ServiceDescriptor, table *ProcessTable) error {
	l.logger.Infof("Launching daemon, name: %s, executable: %s", descriptor.Name, descriptor.Execution.ExecutablePath)

	if descriptor.Preflight != nil {
		if err := descriptor.Preflight(ctx); err != nil {
			return errors.NewLaunchError(
				fmt.Sprintf("configuration preflight failed for daemon %s", descriptor.Name), err,
			).WithContext("daemon", descriptor.Name)
		}
	}

	if err := processpkg.ValidateExecutionConfig(descriptor.Execution); err != nil {
		return errors.NewLaunchError(
			fmt.Sprintf("invalid execution configuration for daemon %s", descriptor.Name), err,
		).WithContext("daemon", descriptor.Name)
	}

	proc, err := processpkg.Start(ctx, descriptor.Execution, descriptor.Name, l.logger)
	if err != nil {
		return errors.NewLaunchError(
			fmt.Sprintf("failed to start daemon %s", descriptor.Name), err,
		).WithContext("daemon", descriptor.Name)
	}

	handle := NewProcessHandle(descriptor.Name, proc)
	table.Put(descriptor.Name, handle)

	if err := l.confirmRunning(ctx, descriptor, handle); err != nil {
		return errors.NewLaunchError(
			fmt.Sprintf("daemon %s did not confirm running within %s", descriptor.Name, l.launchTimeout), err,
		).WithContext("daemon", descriptor.Name).WithContext("pid", handle.PID())
	}

	if l.collectors != nil {
		l.collectors.DaemonLaunched(descriptor.Name)
	}
	l.logger.Infof("Daemon confirmed running, name: %s, pid: %d", descriptor.Name, handle.PID())
	return nil
}

// confirmRunning polls until the process is alive and, for TCP daemons,
// its port accepts connections. Process death is terminal; an unbound
// port is retried until the launch timeout expires.
func (l *Launcher) confirmRunning(ctx context.Context, descriptor ServiceDescriptor, handle *ProcessHandle) error {
	confirmCtx, cancel := context.WithTimeout(ctx, l.launchTimeout)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(launchPollInterval), confirmCtx)
	return backoff.Retry(func() error {
		if !handle.IsRunning() {
			return backoff.Permanent(fmt.Errorf("process %d exited during launch", handle.PID()))
		}
		if descriptor.Transport == TransportTCP && descriptor.Port > 0 {
			address := net.JoinHostPort("127.0.0.1", strconv.Itoa(descriptor.Port))
			conn, err := net.DialTimeout("tcp", address, launchPollInterval)
			if err != nil {
				return fmt.Errorf("port %d not accepting connections: %w", descriptor.Port, err)
			}
			conn.Close()
		}
		return nil
	}, policy)
}
