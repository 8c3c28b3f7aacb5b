package monitoring

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/probes"
)

// HealthCheckResult is one probe's answer from one monitoring pass.
// Results are never mutated after creation.
type HealthCheckResult struct {
	Name      string    `json:"name"`
	Passed    bool      `json:"passed"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates one full monitoring pass. Healthy is true only when
// every probe passed.
type Report struct {
	Results   []HealthCheckResult `json:"results"`
	Failures  int                 `json:"failures"`
	Healthy   bool                `json:"healthy"`
	CheckedAt time.Time           `json:"checked_at"`
	Elapsed   time.Duration       `json:"elapsed_ns"`
}

// Monitor runs the probe battery. Run is re-entrant: each pass works on
// its own result slice, so the supervisor's periodic loop and an ad-hoc
// invocation may overlap freely.
type Monitor struct {
	probes  []probes.Probe
	timeout time.Duration
	logger  logging.Logger
}

// NewMonitor builds a monitor over a fixed probe battery with one
// timeout applied to every probe individually.
func NewMonitor(battery []probes.Probe, probeTimeout time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		probes:  battery,
		timeout: probeTimeout,
		logger:  logger,
	}
}

// Run executes every probe in parallel, one task per probe, each with
// its own timeout, and fans results into a report ordered like the
// battery. A probe that overruns its timeout is a failed check; Run
// itself never blocks indefinitely.
func (m *Monitor) Run(ctx context.Context) Report {
	started := time.Now()
	results := make([]HealthCheckResult, len(m.probes))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(m.probes) + 1)
	for i, probe := range m.probes {
		i, probe := i, probe
		group.Go(func() error {
			probeCtx, cancel := context.WithTimeout(groupCtx, m.timeout)
			defer cancel()

			ok, message := probe.Run(probeCtx)
			if probeCtx.Err() == context.DeadlineExceeded && ok {
				// A probe must not report success it could not finish.
				ok = false
				message = "probe timed out"
			}
			results[i] = HealthCheckResult{
				Name:      probe.Name(),
				Passed:    ok,
				Message:   message,
				Timestamp: time.Now(),
			}
			return nil
		})
	}
	group.Wait()

	report := Report{
		Results:   results,
		Healthy:   true,
		CheckedAt: started,
		Elapsed:   time.Since(started),
	}
	for _, result := range results {
		if !result.Passed {
			report.Failures++
			report.Healthy = false
			m.logger.Warnf("Health check failed: %s: %s", result.Name, result.Message)
		} else {
			m.logger.Debugf("Health check passed: %s: %s", result.Name, result.Message)
		}
	}

	m.logger.Debugf("Health run complete: %d/%d passed in %v",
		len(results)-report.Failures, len(results), report.Elapsed)
	return report
}

// ResultFor finds a result by probe name, for callers inspecting a
// specific check.
func (r Report) ResultFor(name string) (HealthCheckResult, bool) {
	for _, result := range r.Results {
		if result.Name == name {
			return result, true
		}
	}
	return HealthCheckResult{}, false
}
