package render

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/netboot-tools/pxe-supervisor/pkg/errors"
)

// Kernel and initrd file names fixed by the image-download collaborator's
// on-disk contract: <images-root>/<distribution-tag>/{vmlinuz,initrd.img}.
const (
	KernelFileName = "vmlinuz"
	InitrdFileName = "initrd.img"
)

// Distribution is one bootable image pair discovered under the images root.
type Distribution struct {
	Tag        string
	KernelPath string
	InitrdPath string
}

// DiscoverDistributions scans the images root for complete kernel/initrd
// pairs. Incomplete directories are skipped, not errors: the download
// helper may still be filling them in. Results are sorted by tag so the
// rendered menu is deterministic.
func DiscoverDistributions(imagesRoot string) ([]Distribution, error) {
	entries, err := os.ReadDir(imagesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError("failed to read images root", err).
			WithContext("images_root", imagesRoot)
	}

	var distributions []Distribution
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kernel := filepath.Join(imagesRoot, entry.Name(), KernelFileName)
		initrd := filepath.Join(imagesRoot, entry.Name(), InitrdFileName)
		if !fileExists(kernel) || !fileExists(initrd) {
			continue
		}
		distributions = append(distributions, Distribution{
			Tag:        entry.Name(),
			KernelPath: kernel,
			InitrdPath: initrd,
		})
	}

	sort.Slice(distributions, func(i, j int) bool {
		return distributions[i].Tag < distributions[j].Tag
	})
	return distributions, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
