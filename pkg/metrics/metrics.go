package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
)

// Metrics wraps the Prometheus collectors exported by the supervisor.
type Metrics struct {
	registry             *prometheus.Registry
	monitorRunSeconds    prometheus.Histogram
	probeResult          *prometheus.GaugeVec
	probeFailuresTotal   *prometheus.CounterVec
	daemonLaunchesTotal  *prometheus.CounterVec
	daemonRestartsTotal  *prometheus.CounterVec
	lastHealthyTimestamp prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		monitorRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pxe_supervisor_monitor_run_seconds",
			Help:    "Duration of full health monitoring passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		probeResult: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pxe_supervisor_probe_up",
			Help: "Last result per probe: 1 pass, 0 fail.",
		}, []string{"probe"}),
		probeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pxe_supervisor_probe_failures_total",
			Help: "Total probe failures by probe name.",
		}, []string{"probe"}),
		daemonLaunchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pxe_supervisor_daemon_launches_total",
			Help: "Total daemon launches by daemon name.",
		}, []string{"daemon"}),
		daemonRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pxe_supervisor_daemon_restarts_total",
			Help: "Total health-triggered daemon restarts by daemon name.",
		}, []string{"daemon"}),
		lastHealthyTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pxe_supervisor_last_healthy_timestamp",
			Help: "Unix timestamp of the last fully healthy monitoring pass.",
		}),
	}

	registry.MustRegister(
		m.monitorRunSeconds,
		m.probeResult,
		m.probeFailuresTotal,
		m.daemonLaunchesTotal,
		m.daemonRestartsTotal,
		m.lastHealthyTimestamp,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReport records one monitoring pass.
func (m *Metrics) ObserveReport(report monitoring.Report) {
	m.monitorRunSeconds.Observe(report.Elapsed.Seconds())
	for _, result := range report.Results {
		if result.Passed {
			m.probeResult.WithLabelValues(result.Name).Set(1)
		} else {
			m.probeResult.WithLabelValues(result.Name).Set(0)
			m.probeFailuresTotal.WithLabelValues(result.Name).Inc()
		}
	}
	if report.Healthy {
		m.lastHealthyTimestamp.SetToCurrentTime()
	}
}

// DaemonLaunched counts a successful daemon launch.
func (m *Metrics) DaemonLaunched(daemon string) {
	m.daemonLaunchesTotal.WithLabelValues(daemon).Inc()
}

// DaemonRestarted counts a health-triggered daemon restart.
func (m *Metrics) DaemonRestarted(daemon string) {
	m.daemonRestartsTotal.WithLabelValues(daemon).Inc()
}
