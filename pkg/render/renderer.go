package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/process"
)

// ValidateFunc checks a candidate configuration file before it is
// committed to its live path, preferably with the target daemon's own
// syntax-check facility.
type ValidateFunc func(ctx context.Context, path string) error

// RenderedConfig is one expanded configuration file. Content never
// reaches Path unless Validate accepts it; on rejection the previous
// live file is left untouched.
type RenderedConfig struct {
	Name     string
	Path     string
	Content  []byte
	Validate ValidateFunc
}

// Renderer expands configuration templates for the managed daemons.
type Renderer struct {
	cfg       *config.Config
	overrides *config.DaemonsFile
	logger    logging.Logger
}

func NewRenderer(cfg *config.Config, overrides *config.DaemonsFile, logger logging.Logger) *Renderer {
	if overrides == nil {
		overrides = &config.DaemonsFile{Daemons: map[string]config.DaemonCommand{}}
	}
	return &Renderer{cfg: cfg, overrides: overrides, logger: logger}
}

// BaseURL is the address clients use to fetch images, embedded in the
// rendered boot menu.
func (r *Renderer) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", r.cfg.HostIP, r.cfg.HTTPPort)
}

// RenderAll expands every daemon configuration. Expansion is pure: no
// file is touched until CommitAll.
func (r *Renderer) RenderAll() ([]RenderedConfig, error) {
	dnsmasqConf, err := r.renderTemplate("dnsmasq.conf", dnsmasqConfTemplate, r.cfg)
	if err != nil {
		return nil, err
	}

	nginxConf, err := r.renderTemplate("nginx.conf", nginxConfTemplate, r.cfg)
	if err != nil {
		return nil, err
	}

	distributions, err := DiscoverDistributions(r.cfg.ImagesRoot)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("Discovered %d bootable distribution(s) under %s", len(distributions), r.cfg.ImagesRoot)

	menuData := struct {
		TimeoutDeciseconds int
		DefaultBoot        string
		BaseURL            string
		Distributions      []Distribution
	}{
		// PXELINUX counts timeouts in tenths of a second.
		TimeoutDeciseconds: r.cfg.MenuTimeout * 10,
		DefaultBoot:        r.cfg.DefaultBoot,
		BaseURL:            r.BaseURL(),
		Distributions:      distributions,
	}
	bootMenu, err := r.renderTemplate("boot menu", bootMenuTemplate, menuData)
	if err != nil {
		return nil, err
	}

	return []RenderedConfig{
		{
			Name:     "dnsmasq.conf",
			Path:     filepath.Join(r.cfg.ConfRoot, "dnsmasq.conf"),
			Content:  dnsmasqConf,
			Validate: r.dnsmasqValidator(),
		},
		{
			Name:     "nginx.conf",
			Path:     filepath.Join(r.cfg.ConfRoot, "nginx.conf"),
			Content:  nginxConf,
			Validate: r.nginxValidator(),
		},
		{
			Name:     "boot menu",
			Path:     filepath.Join(r.cfg.TFTPRoot, "pxelinux.cfg", "default"),
			Content:  bootMenu,
			Validate: r.bootMenuValidator(),
		},
	}, nil
}

// CommitAll validates and commits every rendered configuration. The
// first validation failure aborts: partial configuration must never
// reach a running daemon, so committing stops before launch ever starts.
func (r *Renderer) CommitAll(ctx context.Context, configs []RenderedConfig) error {
	for _, rendered := range configs {
		if err := r.commit(ctx, rendered); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) commit(ctx context.Context, rendered RenderedConfig) error {
	dir := filepath.Dir(rendered.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("failed to create configuration directory", err).
			WithContext("dir", dir)
	}

	// Write to a temp file in the destination directory so the final
	// rename is atomic and a validation failure leaves the live file
	// untouched.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(rendered.Path)+".tmp-")
	if err != nil {
		return errors.NewIOError("failed to create temp file", err).WithContext("dir", dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(rendered.Content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIOError("failed to write rendered configuration", err).
			WithContext("path", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to close rendered configuration", err).
			WithContext("path", tmpPath)
	}

	if rendered.Validate != nil {
		validateCtx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		err := rendered.Validate(validateCtx, tmpPath)
		cancel()
		if err != nil {
			os.Remove(tmpPath)
			return errors.NewConfigError(
				fmt.Sprintf("rendered %s failed validation", rendered.Name), err).
				WithContext("path", rendered.Path)
		}
	}

	if err := os.Rename(tmpPath, rendered.Path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to commit rendered configuration", err).
			WithContext("path", rendered.Path)
	}

	r.logger.Infof("Committed %s to %s (%d bytes)", rendered.Name, rendered.Path, len(rendered.Content))
	return nil
}

func (r *Renderer) renderTemplate(name, text string, data interface{}) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(text)
	if err != nil {
		return nil, errors.NewInternalError("failed to parse template", err).WithContext("template", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.NewRenderError("failed to expand template", err).WithContext("template", name)
	}
	return buf.Bytes(), nil
}

// dnsmasqValidator runs dnsmasq's own syntax check against a candidate
// file.
func (r *Renderer) dnsmasqValidator() ValidateFunc {
	executable, validateArgs := r.daemonCommand(config.DaemonDHCP, "dnsmasq", []string{"--test"})
	return func(ctx context.Context, path string) error {
		args := append(append([]string{}, validateArgs...), "-C", path)
		output, err := process.RunCommand(ctx, executable, args...)
		if err != nil {
			return fmt.Errorf("dnsmasq syntax check failed: %w, output: %s", err, strings.TrimSpace(output))
		}
		return nil
	}
}

// nginxValidator runs nginx -t against a candidate file.
func (r *Renderer) nginxValidator() ValidateFunc {
	executable, validateArgs := r.daemonCommand(config.DaemonHTTP, "nginx", []string{"-t"})
	return func(ctx context.Context, path string) error {
		args := append(append([]string{}, validateArgs...), "-c", path)
		output, err := process.RunCommand(ctx, executable, args...)
		if err != nil {
			return fmt.Errorf("nginx syntax check failed: %w, output: %s", err, strings.TrimSpace(output))
		}
		return nil
	}
}

// bootMenuValidator checks the menu in-process; PXELINUX ships no
// offline syntax checker.
func (r *Renderer) bootMenuValidator() ValidateFunc {
	baseURL := r.BaseURL()
	return func(ctx context.Context, path string) error {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return ValidateBootMenu(string(content), baseURL)
	}
}

// ValidateBootMenu performs structural checks on a rendered PXELINUX
// menu: the directives the boot ROM needs must exist and every kernel
// reference must be an absolute URL under the serving address.
func ValidateBootMenu(content, baseURL string) error {
	var hasDefault, hasTimeout, hasLocal bool
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "DEFAULT":
			hasDefault = true
		case "TIMEOUT":
			hasTimeout = true
		case "LABEL":
			if len(fields) > 1 && fields[1] == "local" {
				hasLocal = true
			}
		case "KERNEL":
			if len(fields) < 2 || !strings.HasPrefix(fields[1], baseURL+"/") {
				return fmt.Errorf("kernel reference is not under %s: %q", baseURL, trimmed)
			}
		case "APPEND":
			if !strings.Contains(trimmed, "initrd="+baseURL+"/") {
				return fmt.Errorf("initrd reference is not under %s: %q", baseURL, trimmed)
			}
		}
	}
	if !hasDefault {
		return fmt.Errorf("boot menu is missing a DEFAULT directive")
	}
	if !hasTimeout {
		return fmt.Errorf("boot menu is missing a TIMEOUT directive")
	}
	if !hasLocal {
		return fmt.Errorf("boot menu is missing the local boot entry")
	}
	return nil
}

func (r *Renderer) daemonCommand(name, defaultExecutable string, defaultValidateArgs []string) (string, []string) {
	if override, ok := r.overrides.Daemons[name]; ok {
		validateArgs := override.ValidateArgs
		if len(validateArgs) == 0 {
			validateArgs = defaultValidateArgs
		}
		return override.ExecutablePath, validateArgs
	}
	return defaultExecutable, defaultValidateArgs
}
