package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	processpkg "github.com/netboot-tools/pxe-supervisor/pkg/process"
)

// Transport names the listening protocol a daemon binds, when it has one.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// ServiceDescriptor identifies one managed daemon: how it is started,
// re-validated, stopped, and which port it owns. Immutable once built;
// one instance per daemon, created at supervisor initialization.
type ServiceDescriptor struct {
	Name      string
	Execution processpkg.ExecutionConfig

	// Preflight re-runs the daemon's configuration check immediately
	// before launch. Nil when the daemon has no such facility.
	Preflight func(ctx context.Context) error

	// StopCommand is the daemon's native graceful-stop invocation.
	// Empty means SIGTERM to the process group.
	StopCommand []string

	Port      int // 0 when the daemon binds no well-known port
	Transport Transport
}

// ProcessHandle binds a ServiceDescriptor to its running OS process.
// Created by the launcher, handed to the shutdown coordinator, and
// invalidated once the process is confirmed gone. The handle, not a PID
// file, is the source of truth for "is it running".
type ProcessHandle struct {
	daemon string

	mutex sync.Mutex
	proc  *os.Process
	pid   int
}

func NewProcessHandle(daemon string, proc *os.Process) *ProcessHandle {
	return &ProcessHandle{daemon: daemon, proc: proc, pid: proc.Pid}
}

// PID returns the recorded process ID, or 0 after invalidation.
func (h *ProcessHandle) PID() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.pid
}

// IsRunning queries the OS for the recorded process. An invalidated
// handle is never running.
func (h *ProcessHandle) IsRunning() bool {
	pid := h.PID()
	if pid <= 0 {
		return false
	}
	running, err := processpkg.IsRunning(pid)
	return err == nil && running
}

// Invalidate marks the process as gone. Idempotent.
func (h *ProcessHandle) Invalidate() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.proc = nil
	h.pid = 0
}

// ProcessTable maps daemon names to their handles. All mutation happens
// on the supervisor's own thread of control; the lock exists for the
// read paths used by probes.
type ProcessTable struct {
	mutex   sync.Mutex
	handles map[string]*ProcessHandle
}

func NewProcessTable() *ProcessTable {
	return &ProcessTable{handles: make(map[string]*ProcessHandle)}
}

func (t *ProcessTable) Put(daemon string, handle *ProcessHandle) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handles[daemon] = handle
}

func (t *ProcessTable) Get(daemon string) (*ProcessHandle, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	handle, ok := t.handles[daemon]
	return handle, ok
}

func (t *ProcessTable) Remove(daemon string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.handles, daemon)
}

// PID returns the live PID for a daemon, 0 when absent or invalidated.
// This is the PIDFunc handed to the process-alive probes.
func (t *ProcessTable) PID(daemon string) int {
	handle, ok := t.Get(daemon)
	if !ok {
		return 0
	}
	return handle.PID()
}

// BuildDescriptors constructs the managed daemon set in dependency
// order: address assignment first, then boot-file transfer, then image
// serving, whose address the rendered boot menu references.
func BuildDescriptors(cfg *config.Config, overrides *config.DaemonsFile) []ServiceDescriptor {
	if overrides == nil {
		overrides = &config.DaemonsFile{Daemons: map[string]config.DaemonCommand{}}
	}

	dnsmasqConf := filepath.Join(cfg.ConfRoot, "dnsmasq.conf")
	nginxConf := filepath.Join(cfg.ConfRoot, "nginx.conf")

	dhcp := ServiceDescriptor{
		Name: config.DaemonDHCP,
		Execution: processpkg.ExecutionConfig{
			ExecutablePath: "dnsmasq",
			Args:           []string{"--keep-in-foreground", "--log-facility=-", "--conf-file=" + dnsmasqConf},
		},
		Port:      67,
		Transport: TransportUDP,
	}
	applyOverride(&dhcp, overrides, []string{"--test", "-C", dnsmasqConf})

	tftp := ServiceDescriptor{
		Name: config.DaemonTFTP,
		Execution: processpkg.ExecutionConfig{
			ExecutablePath: "in.tftpd",
			Args:           []string{"-L", "-a", "0.0.0.0:69", "-s", cfg.TFTPRoot},
		},
		Port:      69,
		Transport: TransportUDP,
	}
	applyOverride(&tftp, overrides, nil)

	http := ServiceDescriptor{
		Name: config.DaemonHTTP,
		Execution: processpkg.ExecutionConfig{
			ExecutablePath: "nginx",
			Args:           []string{"-c", nginxConf},
		},
		StopCommand: []string{"nginx", "-s", "quit", "-c", nginxConf},
		Port:        cfg.HTTPPort,
		Transport:   TransportTCP,
	}
	applyOverride(&http, overrides, []string{"-t", "-c", nginxConf})

	return []ServiceDescriptor{dhcp, tftp, http}
}

// applyOverride merges a DaemonsFile entry into the built-in descriptor
// and installs the configuration preflight, preferring an overridden
// validation argument list when one is given.
func applyOverride(descriptor *ServiceDescriptor, overrides *config.DaemonsFile, validateArgs []string) {
	override, ok := overrides.Daemons[descriptor.Name]
	if ok {
		descriptor.Execution.ExecutablePath = override.ExecutablePath
		if override.Args != nil {
			descriptor.Execution.Args = override.Args
		}
		if override.StopCommand != nil {
			descriptor.StopCommand = override.StopCommand
		}
		if override.ValidateArgs != nil {
			validateArgs = override.ValidateArgs
		}
	}
	if len(validateArgs) > 0 {
		descriptor.Preflight = execPreflight(descriptor.Execution.ExecutablePath, validateArgs...)
	}
}

func execPreflight(command string, args ...string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := processpkg.RunCommand(ctx, command, args...)
		return err
	}
}
