//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	processpkg "github.com/netboot-tools/pxe-supervisor/pkg/process"
)

func launchSleep(t *testing.T, name string, table *ProcessTable) *ProcessHandle {
	t.Helper()
	launcher := NewLauncher(3*time.Second, nil, logging.NopLogger{})
	require.NoError(t, launcher.Launch(context.Background(), sleepDescriptor(name), table))
	handle, ok := table.Get(name)
	require.True(t, ok)
	t.Cleanup(func() {
		if pid := handle.PID(); pid > 0 {
			_ = processpkg.Kill(pid)
		}
	})
	return handle
}

func TestStopTerminatesRunningProcess(t *testing.T) {
	table := NewProcessTable()
	handle := launchSleep(t, "tftp", table)
	pid := handle.PID()

	coordinator := NewShutdownCoordinator(3*time.Second, logging.NopLogger{})
	err := coordinator.Stop(context.Background(), sleepDescriptor("tftp"), handle)
	require.NoError(t, err)

	assert.Equal(t, 0, handle.PID())
	running, err := processpkg.IsRunning(pid)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestStopAlreadyStoppedIsNoError(t *testing.T) {
	table := NewProcessTable()
	handle := launchSleep(t, "tftp", table)
	require.NoError(t, processpkg.Kill(handle.PID()))

	// give the kernel a moment to reap
	time.Sleep(200 * time.Millisecond)

	coordinator := NewShutdownCoordinator(time.Second, logging.NopLogger{})
	err := coordinator.Stop(context.Background(), sleepDescriptor("tftp"), handle)
	require.NoError(t, err)
	assert.Equal(t, 0, handle.PID())
}

func TestStopEscalatesWhenStopCommandFails(t *testing.T) {
	table := NewProcessTable()
	handle := launchSleep(t, "http", table)

	descriptor := sleepDescriptor("http")
	descriptor.StopCommand = []string{"/bin/false"}

	coordinator := NewShutdownCoordinator(time.Second, logging.NopLogger{})
	err := coordinator.Stop(context.Background(), descriptor, handle)
	require.NoError(t, err)
	assert.Equal(t, 0, handle.PID())
}

func TestStopAllReverseOrderAndIsolation(t *testing.T) {
	table := NewProcessTable()
	dhcpHandle := launchSleep(t, "dhcp", table)
	httpHandle := launchSleep(t, "http", table)

	descriptors := []ServiceDescriptor{
		sleepDescriptor("dhcp"),
		sleepDescriptor("tftp"), // never launched, must be skipped
		sleepDescriptor("http"),
	}

	coordinator := NewShutdownCoordinator(3*time.Second, logging.NopLogger{})
	err := coordinator.StopAll(context.Background(), descriptors, table)
	require.NoError(t, err)

	assert.Equal(t, 0, dhcpHandle.PID())
	assert.Equal(t, 0, httpHandle.PID())
	for _, name := range []string{"dhcp", "tftp", "http"} {
		_, ok := table.Get(name)
		assert.False(t, ok, "table entry for %s should be gone", name)
	}
}
