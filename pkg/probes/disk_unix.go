//go:build !windows

package probes

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

type diskSpaceProbe struct {
	name      string
	path      string
	threshold int // percent used above which the probe fails
}

// NewDiskSpace probes filesystem usage for the path holding the served
// images. A full disk breaks image downloads long before the daemons
// notice, so it is surfaced as a health failure.
func NewDiskSpace(path string, thresholdPercent int) Probe {
	return &diskSpaceProbe{name: "disk space", path: path, threshold: thresholdPercent}
}

func (p *diskSpaceProbe) Name() string {
	return p.name
}

func (p *diskSpaceProbe) Run(ctx context.Context) (bool, string) {
	var stat unix.Statfs_t
	if err := unix.Statfs(p.path, &stat); err != nil {
		return false, fmt.Sprintf("statfs failed for %s: %v", p.path, err)
	}
	if stat.Blocks == 0 {
		return false, fmt.Sprintf("statfs reported zero blocks for %s", p.path)
	}

	usedPercent := int(100 - (stat.Bavail*100)/stat.Blocks)
	if usedPercent > p.threshold {
		return false, fmt.Sprintf("disk %d%% used at %s, threshold %d%%", usedPercent, p.path, p.threshold)
	}
	return true, fmt.Sprintf("disk %d%% used at %s, threshold %d%%", usedPercent, p.path, p.threshold)
}
