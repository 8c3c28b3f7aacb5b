package config

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
)

// Validate checks the resolved configuration before anything is rendered.
// A failure here is fatal; the supervisor never launches daemons on top
// of an inconsistent address plan.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	for name, value := range map[string]string{
		EnvSubnet:     cfg.Subnet,
		EnvNetmask:    cfg.Netmask,
		EnvRangeStart: cfg.RangeStart,
		EnvRangeEnd:   cfg.RangeEnd,
		EnvRouter:     cfg.Router,
		EnvHostIP:     cfg.HostIP,
	} {
		if err := validateIPv4(value); err != nil {
			return errors.NewValidationError("invalid "+name, err).WithContext("value", value)
		}
	}

	for _, server := range cfg.DNSServers {
		if err := validateIPv4(server); err != nil {
			return errors.NewValidationError("invalid DNS server in "+EnvDNSServers, err).
				WithContext("value", server)
		}
	}
	if len(cfg.DNSServers) == 0 {
		return errors.NewValidationError(EnvDNSServers+" cannot be empty", nil)
	}

	start := binary.BigEndian.Uint32(net.ParseIP(cfg.RangeStart).To4())
	end := binary.BigEndian.Uint32(net.ParseIP(cfg.RangeEnd).To4())
	if start > end {
		return errors.NewValidationError(
			fmt.Sprintf("address range start %s is above range end %s", cfg.RangeStart, cfg.RangeEnd), nil)
	}

	if err := ValidatePort(cfg.HTTPPort); err != nil {
		return errors.NewValidationError("invalid "+EnvHTTPPort, err)
	}
	if err := ValidatePort(cfg.HealthPort); err != nil {
		return errors.NewValidationError("invalid "+EnvHealthPort, err)
	}
	if cfg.HTTPPort == cfg.HealthPort {
		return errors.NewValidationError("serving port and health port cannot be the same", nil).
			WithContext("port", cfg.HTTPPort)
	}

	if cfg.MenuTimeout < 0 {
		return errors.NewValidationError(EnvMenuTimeout+" cannot be negative", nil)
	}
	if cfg.DiskThreshold <= 0 || cfg.DiskThreshold > 100 {
		return errors.NewValidationError(EnvDiskThreshold+" must be between 1 and 100", nil)
	}

	for name, d := range map[string]interface{ Seconds() float64 }{
		EnvMonitorInterval: cfg.MonitorInterval,
		EnvLaunchTimeout:   cfg.LaunchTimeout,
		EnvStopTimeout:     cfg.StopTimeout,
		EnvProbeTimeout:    cfg.ProbeTimeout,
	} {
		if d.Seconds() <= 0 {
			return errors.NewValidationError(name+" must be greater than zero", nil)
		}
	}

	switch cfg.RestartPolicy {
	case RestartNever, RestartOnFailure:
	default:
		return errors.NewValidationError("unknown restart policy", nil).
			WithContext("value", string(cfg.RestartPolicy)).
			WithContext("supported", "never, on-failure")
	}
	if cfg.RestartThreshold <= 0 {
		return errors.NewValidationError(EnvRestartThreshold+" must be greater than zero", nil)
	}

	return nil
}

// ValidatePort validates a TCP/UDP port number.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateIPv4(value string) error {
	ip := net.ParseIP(value)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("not a valid IPv4 address: %q", value)
	}
	return nil
}

// firstHostOfSubnet derives the conventional gateway address, the first
// host of the subnet (e.g. 10.0.0.0 becomes 10.0.0.1).
func firstHostOfSubnet(subnet string) (string, error) {
	ip := net.ParseIP(subnet)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("not a valid IPv4 subnet address: %q", subnet)
	}
	addr := binary.BigEndian.Uint32(ip.To4())
	first := make(net.IP, 4)
	binary.BigEndian.PutUint32(first, addr+1)
	return first.String(), nil
}
