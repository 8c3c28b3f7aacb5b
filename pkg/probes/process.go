package probes

import (
	"context"
	"fmt"

	"github.com/netboot-tools/pxe-supervisor/pkg/process"
)

// PIDFunc reports the current PID of a daemon, or 0 when it is not
// running. A function rather than a value because restarts change the
// PID under the probe.
type PIDFunc func() int

type processAliveProbe struct {
	name string
	pid  PIDFunc
}

// NewProcessAlive probes whether a daemon's recorded process still
// exists.
func NewProcessAlive(daemon string, pid PIDFunc) Probe {
	return &processAliveProbe{name: daemon + " process alive", pid: pid}
}

func (p *processAliveProbe) Name() string {
	return p.name
}

func (p *processAliveProbe) Run(ctx context.Context) (bool, string) {
	pid := p.pid()
	if pid <= 0 {
		return false, "no process recorded"
	}
	running, err := process.IsRunning(pid)
	if err != nil {
		return false, fmt.Sprintf("liveness check failed for PID %d: %v", pid, err)
	}
	if !running {
		return false, fmt.Sprintf("process not running: PID %d", pid)
	}
	return true, fmt.Sprintf("process is running: PID %d", pid)
}

type execProbe struct {
	name    string
	command string
	args    []string
}

// NewExec probes by running a command and treating a zero exit status as
// healthy. Used to replay a daemon's own config syntax check against the
// live file.
func NewExec(name, command string, args ...string) Probe {
	return &execProbe{name: name, command: command, args: args}
}

func (p *execProbe) Name() string {
	return p.name
}

func (p *execProbe) Run(ctx context.Context) (bool, string) {
	output, err := process.RunCommand(ctx, p.command, p.args...)
	if err != nil {
		return false, fmt.Sprintf("command failed: %v, output: %s", err, output)
	}
	return true, "command succeeded"
}
