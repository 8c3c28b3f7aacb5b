package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredDetectionEnv(t *testing.T) {
	// Pin the host IP so tests never depend on the machine's routes.
	t.Setenv(EnvHostIP, "192.168.1.2")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredDetectionEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.0", cfg.Subnet)
	assert.Equal(t, "255.255.255.0", cfg.Netmask)
	assert.Equal(t, "192.168.1.100", cfg.RangeStart)
	assert.Equal(t, "192.168.1.200", cfg.RangeEnd)
	assert.Equal(t, "192.168.1.1", cfg.Router, "router defaults to the first host of the subnet")
	assert.Equal(t, []string{"8.8.8.8", "8.8.4.4"}, cfg.DNSServers)
	assert.Equal(t, "pxe.local", cfg.Domain)
	assert.Equal(t, "12h", cfg.LeaseTime)
	assert.Equal(t, 30, cfg.MenuTimeout)
	assert.Equal(t, "local", cfg.DefaultBoot)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.HealthPort)
	assert.Equal(t, 60*time.Second, cfg.MonitorInterval)
	assert.Equal(t, 3*time.Second, cfg.LaunchTimeout)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
	assert.Equal(t, 90, cfg.DiskThreshold)
	assert.Equal(t, RestartNever, cfg.RestartPolicy)
	assert.Equal(t, "/var/lib/tftpboot", cfg.TFTPRoot)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequiredDetectionEnv(t)
	t.Setenv(EnvSubnet, "10.0.0.0")
	t.Setenv(EnvRangeStart, "10.0.0.50")
	t.Setenv(EnvRangeEnd, "10.0.0.100")
	t.Setenv(EnvHTTPPort, "9090")
	t.Setenv(EnvDNSServers, "10.0.0.1 , 1.1.1.1")
	t.Setenv(EnvMonitorInterval, "5s")
	t.Setenv(EnvRestartPolicy, "on-failure")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.0", cfg.Subnet)
	assert.Equal(t, "10.0.0.1", cfg.Router)
	assert.Equal(t, "10.0.0.50", cfg.RangeStart)
	assert.Equal(t, "10.0.0.100", cfg.RangeEnd)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"10.0.0.1", "1.1.1.1"}, cfg.DNSServers)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval)
	assert.Equal(t, RestartOnFailure, cfg.RestartPolicy)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed subnet", EnvSubnet, "not-an-ip"},
		{"ipv6 subnet", EnvSubnet, "fe80::1"},
		{"malformed duration", EnvMonitorInterval, "sixty"},
		{"negative duration", EnvMonitorInterval, "-10s"},
		{"malformed port", EnvHTTPPort, "eighty"},
		{"port out of range", EnvHTTPPort, "70000"},
		{"unknown restart policy", EnvRestartPolicy, "sometimes"},
		{"disk threshold above 100", EnvDiskThreshold, "150"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredDetectionEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsInvertedRange(t *testing.T) {
	setRequiredDetectionEnv(t)
	t.Setenv(EnvRangeStart, "192.168.1.200")
	t.Setenv(EnvRangeEnd, "192.168.1.100")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range")
}

func TestLoadRejectsPortCollision(t *testing.T) {
	setRequiredDetectionEnv(t)
	t.Setenv(EnvHTTPPort, "9091")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIsDeterministic(t *testing.T) {
	setRequiredDetectionEnv(t)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)

	assert.Equal(t, first, second, "loading twice with identical inputs must resolve identically")
}

func TestLoadDaemonsFile(t *testing.T) {
	t.Run("empty path yields empty overrides", func(t *testing.T) {
		file, err := LoadDaemonsFile("")
		require.NoError(t, err)
		assert.Empty(t, file.Daemons)
	})

	t.Run("valid override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemons.yaml")
		content := `
daemons:
  dhcp:
    executable_path: /usr/sbin/dnsmasq
    args: ["--keep-in-foreground"]
    validate_args: ["--test"]
  http:
    executable_path: /usr/local/nginx/sbin/nginx
    stop_command: ["/usr/local/nginx/sbin/nginx", "-s", "quit"]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		file, err := LoadDaemonsFile(path)
		require.NoError(t, err)
		require.Contains(t, file.Daemons, "dhcp")
		assert.Equal(t, "/usr/sbin/dnsmasq", file.Daemons["dhcp"].ExecutablePath)
		assert.Equal(t, []string{"--keep-in-foreground"}, file.Daemons["dhcp"].Args)
		assert.Equal(t, []string{"/usr/local/nginx/sbin/nginx", "-s", "quit"}, file.Daemons["http"].StopCommand)
	})

	t.Run("unknown daemon rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemons.yaml")
		content := `
daemons:
  smtp:
    executable_path: /usr/sbin/sendmail
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := LoadDaemonsFile(path)
		assert.Error(t, err)
	})

	t.Run("missing executable path rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemons.yaml")
		content := `
daemons:
  tftp:
    args: ["--secure"]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := LoadDaemonsFile(path)
		assert.Error(t, err)
	})
}

func TestDetectHostIP(t *testing.T) {
	// Whatever the environment, detection must either produce a parseable
	// IPv4 address or a clear error.
	ip, err := DetectHostIP()
	if err != nil {
		t.Skipf("no usable network in test environment: %v", err)
	}
	assert.NoError(t, validateIPv4(ip))
}
