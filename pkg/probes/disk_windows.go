//go:build windows

package probes

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows"
)

type diskSpaceProbe struct {
	name      string
	path      string
	threshold int
}

func NewDiskSpace(path string, thresholdPercent int) Probe {
	return &diskSpaceProbe{name: "disk space", path: path, threshold: thresholdPercent}
}

func (p *diskSpaceProbe) Name() string {
	return p.name
}

func (p *diskSpaceProbe) Run(ctx context.Context) (bool, string) {
	var free, total, totalFree uint64
	pathPtr, err := windows.UTF16PtrFromString(p.path)
	if err != nil {
		return false, fmt.Sprintf("invalid path %s: %v", p.path, err)
	}
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &free, &total, &totalFree); err != nil {
		return false, fmt.Sprintf("disk space query failed for %s: %v", p.path, err)
	}
	if total == 0 {
		return false, fmt.Sprintf("disk space query reported zero size for %s", p.path)
	}

	usedPercent := int(100 - (free*100)/total)
	if usedPercent > p.threshold {
		return false, fmt.Sprintf("disk %d%% used at %s, threshold %d%%", usedPercent, p.path, p.threshold)
	}
	return true, fmt.Sprintf("disk %d%% used at %s, threshold %d%%", usedPercent, p.path, p.threshold)
}
