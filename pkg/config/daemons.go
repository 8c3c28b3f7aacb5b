package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
)

// Daemon names, also the keys of the daemons override file.
const (
	DaemonDHCP = "dhcp"
	DaemonTFTP = "tftp"
	DaemonHTTP = "http"
)

// DaemonCommand overrides how one managed daemon is invoked. Packaging
// differs across distributions (dnsmasq vs dnsmasq.bin, tftpd-hpa vs
// in.tftpd), so the commands are data, not code.
type DaemonCommand struct {
	ExecutablePath string   `yaml:"executable_path"`
	Args           []string `yaml:"args,omitempty"`
	ValidateArgs   []string `yaml:"validate_args,omitempty"`
	StopCommand    []string `yaml:"stop_command,omitempty"`
}

// DaemonsFile is the optional YAML override file mapping daemon name to
// its command configuration.
type DaemonsFile struct {
	Daemons map[string]DaemonCommand `yaml:"daemons"`
}

// LoadDaemonsFile reads and validates a daemon override file. An empty
// path yields an empty override set.
func LoadDaemonsFile(path string) (*DaemonsFile, error) {
	if path == "" {
		return &DaemonsFile{Daemons: map[string]DaemonCommand{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read daemons file", err).WithContext("path", path)
	}

	var file DaemonsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfigError("failed to parse daemons file", err).WithContext("path", path)
	}
	if file.Daemons == nil {
		file.Daemons = map[string]DaemonCommand{}
	}

	for name, command := range file.Daemons {
		switch name {
		case DaemonDHCP, DaemonTFTP, DaemonHTTP:
		default:
			return nil, errors.NewValidationError("unknown daemon in daemons file", nil).
				WithContext("daemon", name).
				WithContext("supported", "dhcp, tftp, http")
		}
		if command.ExecutablePath == "" {
			return nil, errors.NewValidationError("daemon override is missing executable_path", nil).
				WithContext("daemon", name)
		}
	}

	return &file, nil
}
