package render

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
)

// Boot loader files staged from the syslinux installation into the TFTP
// root. pxelinux.0 and ldlinux.c32 load the boot loader itself; the
// rendered menu declares DEFAULT menu.c32, which in turn loads
// libutil.c32, so all four are mandatory. The rest are staged when
// present.
var (
	requiredBootFiles = []string{"pxelinux.0", "ldlinux.c32", "menu.c32", "libutil.c32"}
	optionalBootFiles = []string{"libcom32.c32", "vesamenu.c32"}
)

// RequiredBootFiles lists the files the PXE file-presence probe checks
// for under the TFTP root.
func RequiredBootFiles() []string {
	return append([]string{}, requiredBootFiles...)
}

// StageBootFiles copies boot loader files from the syslinux directory
// into the TFTP root. Staging is idempotent: a file is rewritten only
// when its content differs, so repeated runs converge instead of
// churning mtimes under a serving daemon.
func (r *Renderer) StageBootFiles() error {
	if err := os.MkdirAll(r.cfg.TFTPRoot, 0o755); err != nil {
		return errors.NewIOError("failed to create TFTP root", err).
			WithContext("tftp_root", r.cfg.TFTPRoot)
	}

	for _, name := range requiredBootFiles {
		source := filepath.Join(r.cfg.SyslinuxDir, name)
		if !fileExists(source) {
			return errors.NewConfigError("required boot loader file is missing from syslinux directory: "+source, nil).
				WithContext("file", source)
		}
		if err := r.stageFile(source, filepath.Join(r.cfg.TFTPRoot, name)); err != nil {
			return err
		}
	}

	for _, name := range optionalBootFiles {
		source := filepath.Join(r.cfg.SyslinuxDir, name)
		if !fileExists(source) {
			r.logger.Debugf("Optional boot file not present, skipping: %s", source)
			continue
		}
		if err := r.stageFile(source, filepath.Join(r.cfg.TFTPRoot, name)); err != nil {
			return err
		}
	}

	return nil
}

func (r *Renderer) stageFile(source, destination string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return errors.NewIOError("failed to read boot file", err).WithContext("source", source)
	}

	if existing, err := os.ReadFile(destination); err == nil && bytes.Equal(existing, content) {
		r.logger.Debugf("Boot file already staged, skipping: %s", destination)
		return nil
	}

	if err := os.WriteFile(destination, content, 0o644); err != nil {
		return errors.NewIOError("failed to stage boot file", err).WithContext("destination", destination)
	}
	r.logger.Infof("Staged boot file %s -> %s (%d bytes)", source, destination, len(content))
	return nil
}
