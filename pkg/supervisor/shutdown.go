package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	processpkg "github.com/netboot-tools/pxe-supervisor/pkg/process"
)

const stopPollInterval = 100 * time.Millisecond

// ShutdownCoordinator stops managed daemons in reverse launch order.
// Each daemon gets a graceful stop first, a bounded wait for exit, then
// SIGKILL escalation. A failure on one daemon never skips the others.
type ShutdownCoordinator struct {
	stopTimeout time.Duration
	logger      logging.Logger
}

func NewShutdownCoordinator(stopTimeout time.Duration, logger logging.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		stopTimeout: stopTimeout,
		logger:      logger,
	}
}

// StopAll walks the descriptors in reverse order and stops each daemon
// that has a live handle in the table. Returns the collected stop
// errors, or nil when every daemon went down cleanly.
func (c *ShutdownCoordinator) StopAll(ctx context.Context, descriptors []ServiceDescriptor, table *ProcessTable) error {
	collection := errors.NewErrorCollection()

	for i := len(descriptors) - 1; i >= 0; i-- {
		descriptor := descriptors[i]
		handle, ok := table.Get(descriptor.Name)
		if !ok || handle.PID() == 0 {
			continue
		}
		if err := c.Stop(ctx, descriptor, handle); err != nil {
			c.logger.Errorf("Failed to stop daemon, name: %s, error: %v", descriptor.Name, err)
			collection.Add(err)
		}
		table.Remove(descriptor.Name)
	}

	return collection.ToError()
}

// Stop brings one daemon down and invalidates its handle. The handle is
// invalidated even when escalation was needed, so a later health check
// never reports a stale PID as alive.
func (c *ShutdownCoordinator) Stop(ctx context.Context, descriptor ServiceDescriptor, handle *ProcessHandle) error {
	pid := handle.PID()
	if pid == 0 || !handle.IsRunning() {
		c.logger.Debugf("Daemon already stopped, name: %s", descriptor.Name)
		handle.Invalidate()
		return nil
	}

	c.logger.Infof("Stopping daemon, name: %s, pid: %d", descriptor.Name, pid)

	if err := c.gracefulStop(ctx, descriptor, pid); err != nil {
		c.logger.Warnf("Graceful stop failed, name: %s, error: %v", descriptor.Name, err)
	}

	if c.waitForExit(ctx, handle) {
		handle.Invalidate()
		c.logger.Infof("Daemon stopped gracefully, name: %s", descriptor.Name)
		return nil
	}

	c.logger.Warnf("Daemon did not exit within %s, escalating to SIGKILL, name: %s, pid: %d",
		c.stopTimeout, descriptor.Name, pid)

	killErr := processpkg.Kill(pid)
	stopped := c.waitForExit(ctx, handle)
	handle.Invalidate()

	if killErr != nil && !stopped {
		return errors.NewProcessError(
			fmt.Sprintf("failed to kill daemon %s", descriptor.Name), killErr,
		).WithContext("daemon", descriptor.Name).WithContext("pid", pid)
	}
	if !stopped {
		return errors.NewProcessError(
			fmt.Sprintf("daemon %s still running after SIGKILL", descriptor.Name), nil,
		).WithContext("daemon", descriptor.Name).WithContext("pid", pid)
	}
	return nil
}

// gracefulStop runs the daemon's native stop command when it has one,
// otherwise signals the process group with SIGTERM.
func (c *ShutdownCoordinator) gracefulStop(ctx context.Context, descriptor ServiceDescriptor, pid int) error {
	if len(descriptor.StopCommand) > 0 {
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		defer cancel()
		_, err := processpkg.RunCommand(stopCtx, descriptor.StopCommand[0], descriptor.StopCommand[1:]...)
		return err
	}
	return processpkg.SendTerminationSignal(pid)
}

// waitForExit polls until the process is gone or the stop timeout
// elapses. Context cancellation here does not cut the wait short: the
// shutdown path is usually running on an already-cancelled context.
func (c *ShutdownCoordinator) waitForExit(ctx context.Context, handle *ProcessHandle) bool {
	deadline := time.Now().Add(c.stopTimeout)
	for time.Now().Before(deadline) {
		if !handle.IsRunning() {
			return true
		}
		time.Sleep(stopPollInterval)
	}
	return !handle.IsRunning()
}
