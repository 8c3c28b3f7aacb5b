package supervisor

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/httpapi"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/metrics"
	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
	"github.com/netboot-tools/pxe-supervisor/pkg/render"
)

// Supervisor owns the full lifecycle of the PXE daemon set: render and
// commit configurations, launch daemons in order, monitor their health,
// and stop them in reverse order on a termination signal.
type Supervisor struct {
	cfg         *config.Config
	descriptors []ServiceDescriptor
	renderer    *render.Renderer
	launcher    *Launcher
	coordinator *ShutdownCoordinator
	monitor     *monitoring.Monitor
	collectors  *metrics.Metrics
	phase       *PhaseMachine
	table       *ProcessTable
	logger      logging.Logger

	mutex      sync.Mutex
	lastReport monitoring.Report
	ready      bool
	failures   map[string]int // consecutive liveness failures per daemon
}

// New wires a supervisor from an already-loaded configuration. The
// daemon override file is read here so a broken override fails fast.
func New(cfg *config.Config, logger logging.Logger) (*Supervisor, error) {
	overrides, err := config.LoadDaemonsFile(cfg.DaemonsFile)
	if err != nil {
		return nil, err
	}

	renderer := render.NewRenderer(cfg, overrides, logging.NewPrefixLogger("render: ", logger))
	descriptors := BuildDescriptors(cfg, overrides)
	table := NewProcessTable()
	collectors := metrics.New()
	battery := BuildBattery(cfg, descriptors, table, renderer.BaseURL(), logger)

	return &Supervisor{
		cfg:         cfg,
		descriptors: descriptors,
		renderer:    renderer,
		launcher:    NewLauncher(cfg.LaunchTimeout, collectors, logging.NewPrefixLogger("launch: ", logger)),
		coordinator: NewShutdownCoordinator(cfg.StopTimeout, logging.NewPrefixLogger("shutdown: ", logger)),
		monitor:     monitoring.NewMonitor(battery, cfg.ProbeTimeout, logging.NewPrefixLogger("monitor: ", logger)),
		collectors:  collectors,
		phase:       NewPhaseMachine(logger),
		table:       table,
		logger:      logger,
		failures:    make(map[string]int),
	}, nil
}

// LastReport returns the most recent health report. Implements
// httpapi.HealthSource.
func (s *Supervisor) LastReport() monitoring.Report {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastReport
}

// Ready reports whether startup completed with a passing health run.
// Implements httpapi.HealthSource.
func (s *Supervisor) Ready() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ready
}

// Phase exposes the current lifecycle phase.
func (s *Supervisor) Phase() Phase {
	return s.phase.Current()
}

// Run drives the supervisor until a termination signal arrives or a
// startup step fails. Returns the process exit code: 0 for a clean
// shutdown, 1 for a render or launch failure.
func (s *Supervisor) Run(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.cfg.LogEffective(s.logger)

	if err := s.renderPhase(ctx); err != nil {
		s.logger.Errorf("Startup failed while rendering configurations: %v", err)
		_ = s.phase.Transition(PhaseStopped, "render failure", err)
		return 1
	}

	if err := s.launchPhase(ctx); err != nil {
		s.logger.Errorf("Startup failed while launching daemons: %v", err)
		_ = s.phase.Transition(PhaseShuttingDown, "launch failure", err)
		s.teardown()
		return 1
	}

	s.monitorPhase(ctx)

	_ = s.phase.Transition(PhaseShuttingDown, "termination signal", ctx.Err())
	s.teardown()
	return 0
}

func (s *Supervisor) renderPhase(ctx context.Context) error {
	if err := s.phase.Transition(PhaseRendering, "startup", nil); err != nil {
		return err
	}
	if err := s.renderer.StageBootFiles(); err != nil {
		return err
	}
	configs, err := s.renderer.RenderAll()
	if err != nil {
		return err
	}
	return s.renderer.CommitAll(ctx, configs)
}

func (s *Supervisor) launchPhase(ctx context.Context) error {
	if err := s.phase.Transition(PhaseLaunching, "configs committed", nil); err != nil {
		return err
	}
	return s.launcher.LaunchAll(ctx, s.descriptors, s.table)
}

// monitorPhase runs health checks until the context is cancelled. The
// first run gates readiness; a failing startup run leaves the daemons up
// and the supervisor not-ready rather than aborting.
func (s *Supervisor) monitorPhase(ctx context.Context) {
	_ = s.phase.Transition(PhaseMonitoring, "all daemons running", nil)

	httpapi.Start(ctx, s.cfg.HealthPort, s, s.collectors, logging.NewPrefixLogger("httpapi: ", s.logger))

	report := s.monitor.Run(ctx)
	s.recordReport(report, true)
	if report.Healthy {
		s.logger.Infof("Startup health run passed, %d checks", len(report.Results))
	} else {
		s.logger.Warnf("Startup health run failed, %d of %d checks failing; continuing not-ready",
			report.Failures, len(report.Results))
	}

	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := s.monitor.Run(ctx)
			s.recordReport(report, false)
			if !report.Healthy {
				s.logger.Warnf("Health check run failed, %d of %d checks failing",
					report.Failures, len(report.Results))
			}
			s.applyRestartPolicy(ctx, report)
		}
	}
}

// recordReport stores the report for the health endpoint and updates
// metrics. Readiness latches on the first healthy run and never drops
// back; /healthz reflects current health separately.
func (s *Supervisor) recordReport(report monitoring.Report, startup bool) {
	s.mutex.Lock()
	s.lastReport = report
	if report.Healthy {
		s.ready = true
	} else if startup {
		s.ready = false
	}
	s.mutex.Unlock()

	s.collectors.ObserveReport(report)
}

// applyRestartPolicy restarts a daemon whose liveness probe has failed
// in enough consecutive runs, when the policy allows it.
func (s *Supervisor) applyRestartPolicy(ctx context.Context, report monitoring.Report) {
	if s.cfg.RestartPolicy != config.RestartOnFailure {
		return
	}

	for _, descriptor := range s.descriptors {
		result, ok := report.ResultFor(processAliveProbeName(descriptor.Name))
		if !ok {
			continue
		}
		if result.Passed {
			s.failures[descriptor.Name] = 0
			continue
		}

		s.failures[descriptor.Name]++
		if s.failures[descriptor.Name] < s.cfg.RestartThreshold {
			continue
		}

		s.logger.Warnf("Restarting daemon after %d consecutive liveness failures, name: %s",
			s.failures[descriptor.Name], descriptor.Name)
		s.failures[descriptor.Name] = 0

		if handle, ok := s.table.Get(descriptor.Name); ok {
			if err := s.coordinator.Stop(ctx, descriptor, handle); err != nil {
				s.logger.Errorf("Failed to stop daemon for restart, name: %s, error: %v", descriptor.Name, err)
			}
		}
		if err := s.launcher.Launch(ctx, descriptor, s.table); err != nil {
			s.logger.Errorf("Failed to restart daemon, name: %s, error: %v", descriptor.Name, err)
			continue
		}
		s.collectors.DaemonRestarted(descriptor.Name)
	}
}

// teardown stops all daemons in reverse order and moves to the terminal
// phase. Stop errors are logged, never fatal: remaining daemons are
// still stopped and the supervisor still exits.
func (s *Supervisor) teardown() {
	stopCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(len(s.descriptors))*s.cfg.StopTimeout+s.cfg.StopTimeout)
	defer cancel()

	if err := s.coordinator.StopAll(stopCtx, s.descriptors, s.table); err != nil {
		s.logger.Errorf("Shutdown completed with errors: %v", err)
	} else {
		s.logger.Infof("All daemons stopped")
	}
	_ = s.phase.Transition(PhaseStopped, "shutdown complete", nil)
}
