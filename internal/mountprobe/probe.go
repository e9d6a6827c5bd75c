// Package mountprobe implements the Mount Probe component (spec.md §4.2):
// given a directory, it returns best-effort mount identity and a stable
// composite volume identifier, falling back to a path-derived identity on
// non-Linux hosts or when host tools are unavailable. Grounded on
// original_source/utils/devices.py (lsblk/findmnt/blkid shell-outs) and,
// for the bounded-timeout external-command shape, on
// internal/services/docker_service.go.
package mountprobe

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// commandTimeout bounds every external command invocation, per spec.md §4.2.
const commandTimeout = 5 * time.Second

// lsblkPriority is the field priority order for building the composite
// volume identifier, per spec.md §4.2.
var lsblkPriority = []string{"UUID", "PARTUUID", "PTUUID", "WWN", "SERIAL", "MODEL", "VENDOR", "FSVER"}

// Lsblk mirrors the block-device attribute set spec.md §4.2 names.
type Lsblk struct {
	Name         string `json:"NAME,omitempty"`
	Path         string `json:"PATH,omitempty"`
	Model        string `json:"MODEL,omitempty"`
	Serial       string `json:"SERIAL,omitempty"`
	Vendor       string `json:"VENDOR,omitempty"`
	Size         string `json:"SIZE,omitempty"`
	FSVer        string `json:"FSVER,omitempty"`
	PTType       string `json:"PTTYPE,omitempty"`
	PTUUID       string `json:"PTUUID,omitempty"`
	PartType     string `json:"PARTTYPE,omitempty"`
	PartUUID     string `json:"PARTUUID,omitempty"`
	PartTypeName string `json:"PARTTYPENAME,omitempty"`
	WWN          string `json:"WWN,omitempty"`
	MajMin       string `json:"MAJ:MIN,omitempty"`
	UUID         string `json:"UUID,omitempty"`
}

func (l *Lsblk) AsMap() map[string]string {
	if l == nil {
		return nil
	}
	return map[string]string{
		"NAME": l.Name, "PATH": l.Path, "MODEL": l.Model, "SERIAL": l.Serial,
		"VENDOR": l.Vendor, "SIZE": l.Size, "FSVER": l.FSVer, "PTTYPE": l.PTType,
		"PTUUID": l.PTUUID, "PARTTYPE": l.PartType, "PARTUUID": l.PartUUID,
		"PARTTYPENAME": l.PartTypeName, "WWN": l.WWN, "MAJ:MIN": l.MajMin, "UUID": l.UUID,
	}
}

// MountInfo is the Probe contract's result type.
type MountInfo struct {
	Directory           string
	MountPoint          string
	Device              string
	VolumeID            string
	UUID                string
	Label               string
	Lsblk               *Lsblk
	LsblkRawJSON         string
	IdentityRefreshedAt time.Time
}

// IsComplete reports whether this MountInfo carries at least one
// persistent identity attribute, per spec.md §4.4's mount-metadata
// caching rule ("complete" means never needs reprobing).
func (m *MountInfo) IsComplete() bool {
	if m == nil {
		return false
	}
	if m.UUID != "" {
		return true
	}
	fields := m.Lsblk.AsMap()
	for _, k := range []string{"UUID", "PTUUID", "PARTUUID", "SERIAL", "WWN"} {
		if fields[k] != "" {
			return true
		}
	}
	return false
}

// Probe returns best-effort mount identity for directory. On non-Linux
// hosts, or when host tools are unavailable, it returns a fallback
// MountInfo whose device and volume_id equal the path's filesystem anchor.
func Probe(directory string) (*MountInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if runtime.GOOS == "linux" {
		if info, err := probeLinux(ctx, directory); err == nil {
			return info, nil
		}
	}
	return fallbackProbe(directory)
}

func probeLinux(ctx context.Context, directory string) (*MountInfo, error) {
	mountPoint, device, err := findmnt(ctx, directory)
	if err != nil {
		return nil, &diskerrors.MountProbeError{Directory: directory, Err: err}
	}

	lsblk, raw, err := lsblkInfo(ctx, device)
	if err != nil {
		// lsblk failure still yields a usable (if incomplete) MountInfo.
		return &MountInfo{
			Directory:  directory,
			MountPoint: mountPoint,
			Device:     device,
			VolumeID:   directory,
		}, nil
	}

	volumeID := buildVolumeID(lsblk)
	if volumeID == "" {
		volumeID = device
	}

	return &MountInfo{
		Directory:           directory,
		MountPoint:          mountPoint,
		Device:               device,
		VolumeID:            volumeID,
		UUID:                lsblk.UUID,
		Lsblk:               lsblk,
		LsblkRawJSON:        raw,
		IdentityRefreshedAt: time.Now(),
	}, nil
}

// buildVolumeID builds the pipe-joined lower-case key=value composite
// identifier from the priority-ordered field list, per spec.md §4.2.
func buildVolumeID(l *Lsblk) string {
	if l == nil {
		return ""
	}
	fields := l.AsMap()
	var parts []string
	for _, key := range lsblkPriority {
		if v := fields[key]; v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", strings.ToLower(key), strings.ToLower(v)))
		}
	}
	return strings.Join(parts, "|")
}
