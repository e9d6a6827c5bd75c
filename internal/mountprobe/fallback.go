package mountprobe

import (
	"os"
	"path/filepath"
)

// fallbackProbe implements the non-Linux / tool-unavailable path: it walks
// up from directory to find its filesystem anchor (the highest ancestor
// sharing the same device number) and uses that anchor as both device and
// volume_id, per spec.md §4.2.
func fallbackProbe(directory string) (*MountInfo, error) {
	anchor := filesystemAnchor(directory)
	return &MountInfo{
		Directory:  directory,
		MountPoint: anchor,
		Device:     anchor,
		VolumeID:   anchor,
	}, nil
}

// filesystemAnchor walks up from dir comparing device numbers (via Stat)
// until the parent's device differs, i.e. until it crosses a mount
// boundary, and returns the last directory still on the original device.
func filesystemAnchor(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	startDev, ok := deviceNumber(abs)
	if !ok {
		return abs
	}

	current := abs
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		dev, ok := deviceNumber(parent)
		if !ok || dev != startDev {
			return current
		}
		current = parent
	}
}

func deviceNumber(path string) (uint64, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return statDev(fi)
}
