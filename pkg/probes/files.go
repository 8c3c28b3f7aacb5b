package probes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type filesPresentProbe struct {
	name  string
	root  string
	files []string
}

// NewFilesPresent probes that the well-known PXE files exist under the
// serving root. Clients cannot boot without them even when every daemon
// process is alive, so this is part of startup health.
func NewFilesPresent(name, root string, files []string) Probe {
	return &filesPresentProbe{name: name, root: root, files: files}
}

func (p *filesPresentProbe) Name() string {
	return p.name
}

func (p *filesPresentProbe) Run(ctx context.Context) (bool, string) {
	var missing []string
	for _, name := range p.files {
		path := filepath.Join(p.root, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("missing under %s: %s", p.root, strings.Join(missing, ", "))
	}
	return true, fmt.Sprintf("all %d required files present under %s", len(p.files), p.root)
}
