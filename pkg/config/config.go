package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

// Environment variable names. Every option has a documented default so a
// bare container still boots a usable PXE stack.
const (
	EnvSubnet           = "PXE_SUBNET"
	EnvNetmask          = "PXE_NETMASK"
	EnvRangeStart       = "PXE_RANGE_START"
	EnvRangeEnd         = "PXE_RANGE_END"
	EnvRouter           = "PXE_ROUTER"
	EnvDNSServers       = "PXE_DNS_SERVERS"
	EnvDomain           = "PXE_DOMAIN"
	EnvLeaseTime        = "PXE_LEASE_TIME"
	EnvMenuTimeout      = "PXE_MENU_TIMEOUT"
	EnvDefaultBoot      = "PXE_DEFAULT_BOOT"
	EnvHTTPPort         = "PXE_HTTP_PORT"
	EnvHealthPort       = "PXE_HEALTH_PORT"
	EnvHostIP           = "PXE_HOST_IP"
	EnvMonitorInterval  = "PXE_MONITOR_INTERVAL"
	EnvLaunchTimeout    = "PXE_LAUNCH_TIMEOUT"
	EnvStopTimeout      = "PXE_STOP_TIMEOUT"
	EnvProbeTimeout     = "PXE_PROBE_TIMEOUT"
	EnvDiskThreshold    = "PXE_DISK_THRESHOLD"
	EnvRestartPolicy    = "PXE_RESTART_POLICY"
	EnvRestartThreshold = "PXE_RESTART_THRESHOLD"
	EnvLogLevel         = "PXE_LOG_LEVEL"
	EnvLogFormat        = "PXE_LOG_FORMAT"
	EnvConfRoot         = "PXE_CONF_ROOT"
	EnvTFTPRoot         = "PXE_TFTP_ROOT"
	EnvImagesRoot       = "PXE_IMAGES_ROOT"
	EnvSyslinuxDir      = "PXE_SYSLINUX_DIR"
	EnvDaemonsFile      = "PXE_DAEMONS_FILE"
)

const (
	defaultSubnet           = "192.168.1.0"
	defaultNetmask          = "255.255.255.0"
	defaultRangeStart       = "192.168.1.100"
	defaultRangeEnd         = "192.168.1.200"
	defaultDNSServers       = "8.8.8.8,8.8.4.4"
	defaultDomain           = "pxe.local"
	defaultLeaseTime        = "12h"
	defaultMenuTimeout      = 30
	defaultDefaultBoot      = "local"
	defaultHTTPPort         = 8080
	defaultHealthPort       = 9091
	defaultMonitorInterval  = 60 * time.Second
	defaultLaunchTimeout    = 3 * time.Second
	defaultStopTimeout      = 10 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultDiskThreshold    = 90
	defaultRestartThreshold = 3
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultConfRoot         = "/etc/pxe"
	defaultTFTPRoot         = "/var/lib/tftpboot"
	defaultImagesRoot       = "/var/lib/pxe/images"
	defaultSyslinuxDir      = "/usr/lib/syslinux"
)

// RestartPolicy controls whether the monitoring loop restarts a daemon
// whose liveness probe keeps failing. The default preserves warn-only
// behavior; restarts are opt-in.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
)

// Config is the effective supervisor configuration, resolved once during
// the Initializing phase and immutable afterwards. Every component
// receives it by reference; nothing mutates ambient environment state
// after Load returns.
type Config struct {
	// DHCP address assignment
	Subnet     string
	Netmask    string
	RangeStart string
	RangeEnd   string
	Router     string
	DNSServers []string
	Domain     string
	LeaseTime  string

	// Boot menu
	MenuTimeout int // seconds before the default entry boots
	DefaultBoot string

	// Serving
	HTTPPort   int
	HealthPort int
	HostIP     string // detected when not set explicitly

	// Supervision
	MonitorInterval  time.Duration
	LaunchTimeout    time.Duration
	StopTimeout      time.Duration
	ProbeTimeout     time.Duration
	DiskThreshold    int // percent used, probe fails above this
	RestartPolicy    RestartPolicy
	RestartThreshold int

	// Logging
	LogLevel  string
	LogFormat string

	// Filesystem roots
	ConfRoot    string
	TFTPRoot    string
	ImagesRoot  string
	SyslinuxDir string
	DaemonsFile string
}

// Load resolves configuration from the environment with documented
// defaults. A .env file in the working directory is read first; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return nil, errors.NewConfigError("failed to load .env file", err)
	}

	cfg := &Config{
		Subnet:        lookupOr(EnvSubnet, defaultSubnet),
		Netmask:       lookupOr(EnvNetmask, defaultNetmask),
		RangeStart:    lookupOr(EnvRangeStart, defaultRangeStart),
		RangeEnd:      lookupOr(EnvRangeEnd, defaultRangeEnd),
		Router:        lookupOr(EnvRouter, ""),
		DNSServers:    splitList(lookupOr(EnvDNSServers, defaultDNSServers)),
		Domain:        lookupOr(EnvDomain, defaultDomain),
		LeaseTime:     lookupOr(EnvLeaseTime, defaultLeaseTime),
		DefaultBoot:   lookupOr(EnvDefaultBoot, defaultDefaultBoot),
		HostIP:        lookupOr(EnvHostIP, ""),
		RestartPolicy: RestartPolicy(lookupOr(EnvRestartPolicy, string(RestartNever))),
		LogLevel:      lookupOr(EnvLogLevel, defaultLogLevel),
		LogFormat:     lookupOr(EnvLogFormat, defaultLogFormat),
		ConfRoot:      lookupOr(EnvConfRoot, defaultConfRoot),
		TFTPRoot:      lookupOr(EnvTFTPRoot, defaultTFTPRoot),
		ImagesRoot:    lookupOr(EnvImagesRoot, defaultImagesRoot),
		SyslinuxDir:   lookupOr(EnvSyslinuxDir, defaultSyslinuxDir),
		DaemonsFile:   lookupOr(EnvDaemonsFile, ""),
	}

	var err error
	if cfg.MenuTimeout, err = lookupInt(EnvMenuTimeout, defaultMenuTimeout); err != nil {
		return nil, err
	}
	if cfg.HTTPPort, err = lookupInt(EnvHTTPPort, defaultHTTPPort); err != nil {
		return nil, err
	}
	if cfg.HealthPort, err = lookupInt(EnvHealthPort, defaultHealthPort); err != nil {
		return nil, err
	}
	if cfg.DiskThreshold, err = lookupInt(EnvDiskThreshold, defaultDiskThreshold); err != nil {
		return nil, err
	}
	if cfg.RestartThreshold, err = lookupInt(EnvRestartThreshold, defaultRestartThreshold); err != nil {
		return nil, err
	}
	if cfg.MonitorInterval, err = lookupDuration(EnvMonitorInterval, defaultMonitorInterval); err != nil {
		return nil, err
	}
	if cfg.LaunchTimeout, err = lookupDuration(EnvLaunchTimeout, defaultLaunchTimeout); err != nil {
		return nil, err
	}
	if cfg.StopTimeout, err = lookupDuration(EnvStopTimeout, defaultStopTimeout); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = lookupDuration(EnvProbeTimeout, defaultProbeTimeout); err != nil {
		return nil, err
	}

	if cfg.Router == "" {
		router, err := firstHostOfSubnet(cfg.Subnet)
		if err != nil {
			return nil, errors.NewConfigError("cannot derive default router from subnet", err).
				WithContext("subnet", cfg.Subnet)
		}
		cfg.Router = router
	}

	if cfg.HostIP == "" {
		ip, err := DetectHostIP()
		if err != nil {
			return nil, errors.NewConfigError("failed to detect host IP; set "+EnvHostIP, err)
		}
		cfg.HostIP = ip
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogEffective records every effective option value so operators can
// audit what the rendered configuration was built from.
func (c *Config) LogEffective(logger logging.Logger) {
	logger.Infof("Effective option %s=%s", EnvSubnet, c.Subnet)
	logger.Infof("Effective option %s=%s", EnvNetmask, c.Netmask)
	logger.Infof("Effective option %s=%s", EnvRangeStart, c.RangeStart)
	logger.Infof("Effective option %s=%s", EnvRangeEnd, c.RangeEnd)
	logger.Infof("Effective option %s=%s", EnvRouter, c.Router)
	logger.Infof("Effective option %s=%s", EnvDNSServers, strings.Join(c.DNSServers, ","))
	logger.Infof("Effective option %s=%s", EnvDomain, c.Domain)
	logger.Infof("Effective option %s=%s", EnvLeaseTime, c.LeaseTime)
	logger.Infof("Effective option %s=%d", EnvMenuTimeout, c.MenuTimeout)
	logger.Infof("Effective option %s=%s", EnvDefaultBoot, c.DefaultBoot)
	logger.Infof("Effective option %s=%d", EnvHTTPPort, c.HTTPPort)
	logger.Infof("Effective option %s=%d", EnvHealthPort, c.HealthPort)
	logger.Infof("Effective option %s=%s", EnvHostIP, c.HostIP)
	logger.Infof("Effective option %s=%v", EnvMonitorInterval, c.MonitorInterval)
	logger.Infof("Effective option %s=%v", EnvLaunchTimeout, c.LaunchTimeout)
	logger.Infof("Effective option %s=%v", EnvStopTimeout, c.StopTimeout)
	logger.Infof("Effective option %s=%v", EnvProbeTimeout, c.ProbeTimeout)
	logger.Infof("Effective option %s=%d", EnvDiskThreshold, c.DiskThreshold)
	logger.Infof("Effective option %s=%s", EnvRestartPolicy, c.RestartPolicy)
	logger.Infof("Effective option %s=%d", EnvRestartThreshold, c.RestartThreshold)
	logger.Infof("Effective option %s=%s", EnvConfRoot, c.ConfRoot)
	logger.Infof("Effective option %s=%s", EnvTFTPRoot, c.TFTPRoot)
	logger.Infof("Effective option %s=%s", EnvImagesRoot, c.ImagesRoot)
	logger.Infof("Effective option %s=%s", EnvSyslinuxDir, c.SyslinuxDir)
}

func lookupOr(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func lookupInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.NewConfigError("invalid integer value for "+key, err).
			WithContext("value", value)
	}
	return parsed, nil
}

func lookupDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.NewConfigError("invalid duration value for "+key, err).
			WithContext("value", value)
	}
	return parsed, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if pathErr, ok := err.(*os.PathError); ok && os.IsNotExist(pathErr.Err) {
		return nil
	}
	return err
}
