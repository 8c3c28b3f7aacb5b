//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/metrics"
	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
)

func healthReport(healthy bool, results ...monitoring.HealthCheckResult) monitoring.Report {
	failures := 0
	for _, result := range results {
		if !result.Passed {
			failures++
		}
	}
	return monitoring.Report{
		Results:   results,
		Failures:  failures,
		Healthy:   healthy,
		CheckedAt: time.Now(),
	}
}

func testSupervisor(cfg *config.Config, descriptors []ServiceDescriptor) *Supervisor {
	logger := logging.NopLogger{}
	return &Supervisor{
		cfg:         cfg,
		descriptors: descriptors,
		launcher:    NewLauncher(cfg.LaunchTimeout, nil, logger),
		coordinator: NewShutdownCoordinator(cfg.StopTimeout, logger),
		collectors:  metrics.New(),
		phase:       NewPhaseMachine(logger),
		table:       NewProcessTable(),
		logger:      logger,
		failures:    make(map[string]int),
	}
}

func TestReadinessLatchesOnFirstHealthyRun(t *testing.T) {
	cfg := testConfig()
	s := testSupervisor(cfg, nil)
	assert.False(t, s.Ready())

	// failing startup run keeps the supervisor not-ready
	s.recordReport(healthReport(false), true)
	assert.False(t, s.Ready())

	s.recordReport(healthReport(true), false)
	assert.True(t, s.Ready())

	// a later failing run degrades health but not readiness
	failing := healthReport(false, monitoring.HealthCheckResult{Name: "http fetch", Passed: false})
	s.recordReport(failing, false)
	assert.True(t, s.Ready())
	assert.False(t, s.LastReport().Healthy)
}

func TestRestartPolicyNeverLeavesDeadDaemonAlone(t *testing.T) {
	cfg := testConfig()
	cfg.RestartPolicy = config.RestartNever
	cfg.RestartThreshold = 1
	cfg.LaunchTimeout = 2 * time.Second
	cfg.StopTimeout = 2 * time.Second

	s := testSupervisor(cfg, []ServiceDescriptor{sleepDescriptor("tftp")})

	failed := healthReport(false, monitoring.HealthCheckResult{
		Name:   processAliveProbeName("tftp"),
		Passed: false,
	})
	s.applyRestartPolicy(context.Background(), failed)

	_, ok := s.table.Get("tftp")
	assert.False(t, ok, "never policy must not launch anything")
}

func TestRestartPolicyOnFailureRestartsAtThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.RestartPolicy = config.RestartOnFailure
	cfg.RestartThreshold = 2
	cfg.LaunchTimeout = 3 * time.Second
	cfg.StopTimeout = 2 * time.Second

	s := testSupervisor(cfg, []ServiceDescriptor{sleepDescriptor("tftp")})
	defer killTableProcesses(t, s.table, "tftp")

	failed := healthReport(false, monitoring.HealthCheckResult{
		Name:   processAliveProbeName("tftp"),
		Passed: false,
	})

	// first failure is below the threshold
	s.applyRestartPolicy(context.Background(), failed)
	_, ok := s.table.Get("tftp")
	assert.False(t, ok)
	assert.Equal(t, 1, s.failures["tftp"])

	// second consecutive failure triggers the restart
	s.applyRestartPolicy(context.Background(), failed)
	handle, ok := s.table.Get("tftp")
	require.True(t, ok)
	assert.True(t, handle.IsRunning())
	assert.Equal(t, 0, s.failures["tftp"])
}

func TestRestartPolicyResetsCounterOnRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.RestartPolicy = config.RestartOnFailure
	cfg.RestartThreshold = 3

	s := testSupervisor(cfg, []ServiceDescriptor{sleepDescriptor("tftp")})

	failed := healthReport(false, monitoring.HealthCheckResult{
		Name:   processAliveProbeName("tftp"),
		Passed: false,
	})
	passed := healthReport(true, monitoring.HealthCheckResult{
		Name:   processAliveProbeName("tftp"),
		Passed: true,
	})

	s.applyRestartPolicy(context.Background(), failed)
	s.applyRestartPolicy(context.Background(), failed)
	assert.Equal(t, 2, s.failures["tftp"])

	s.applyRestartPolicy(context.Background(), passed)
	assert.Equal(t, 0, s.failures["tftp"])
}
