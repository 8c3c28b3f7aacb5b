package supervisor

import (
	"net"
	"path/filepath"
	"strconv"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/probes"
	"github.com/netboot-tools/pxe-supervisor/pkg/render"
)

// processAliveProbeName matches the naming used by probes.NewProcessAlive,
// so the monitoring loop can pick a daemon's liveness result out of a
// report when applying the restart policy.
func processAliveProbeName(daemon string) string {
	return daemon + " process alive"
}

// BuildBattery assembles the full probe battery in report order:
// per-daemon liveness and functional checks first, then environment
// checks that span daemons. PIDs are read through the table so probes
// survive restarts. A nil table skips the liveness probes, for callers
// outside the supervisor process that can only observe daemons through
// their network behavior.
func BuildBattery(cfg *config.Config, descriptors []ServiceDescriptor, table *ProcessTable, baseURL string, logger logging.Logger) []probes.Probe {
	battery := make([]probes.Probe, 0, 12)

	for _, descriptor := range descriptors {
		daemon := descriptor.Name
		if table != nil {
			battery = append(battery, probes.NewProcessAlive(daemon, func() int {
				return table.PID(daemon)
			}))
		}
		if descriptor.Port > 0 {
			address := net.JoinHostPort("127.0.0.1", strconv.Itoa(descriptor.Port))
			battery = append(battery, probes.NewPortListening(daemon, string(descriptor.Transport), address))
		}

		switch daemon {
		case config.DaemonDHCP:
			conf := filepath.Join(cfg.ConfRoot, "dnsmasq.conf")
			battery = append(battery, probes.NewExec(daemon+" config valid",
				descriptor.Execution.ExecutablePath, "--test", "-C", conf))
		case config.DaemonTFTP:
			battery = append(battery, probes.NewTFTPFetch(daemon, "127.0.0.1:69", "pxelinux.0"))
		case config.DaemonHTTP:
			battery = append(battery, probes.NewHTTPFetch(daemon, baseURL+"/", logger))
		}
	}

	bootFiles := append(render.RequiredBootFiles(), filepath.Join("pxelinux.cfg", "default"))
	battery = append(battery,
		probes.NewFilesPresent("boot files present", cfg.TFTPRoot, bootFiles),
		probes.NewDiskSpace(cfg.ImagesRoot, cfg.DiskThreshold),
		probes.NewOutboundReachability(reachabilityTargets(cfg)...),
	)

	return battery
}

// reachabilityTargets derives dial targets from the configured DNS
// servers, falling back to the router when none are set.
func reachabilityTargets(cfg *config.Config) []string {
	targets := make([]string, 0, len(cfg.DNSServers)+1)
	for _, server := range cfg.DNSServers {
		targets = append(targets, net.JoinHostPort(server, "53"))
	}
	if len(targets) == 0 {
		targets = append(targets, net.JoinHostPort(cfg.Router, "53"))
	}
	return targets
}
