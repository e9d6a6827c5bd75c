package mountprobe

import (
	"context"
	"encoding/json"
	"os/exec"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

type lsblkDocument struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Model        string        `json:"model"`
	Serial       string        `json:"serial"`
	Vendor       string        `json:"vendor"`
	Size         json.Number   `json:"size"`
	FSVer        string        `json:"fsver"`
	PTType       string        `json:"pttype"`
	PTUUID       string        `json:"ptuuid"`
	PartType     string        `json:"parttype"`
	PartUUID     string        `json:"partuuid"`
	PartTypeName string        `json:"parttypename"`
	WWN          string        `json:"wwn"`
	MajMin       string        `json:"maj:min"`
	UUID         string        `json:"uuid"`
	Children     []lsblkDevice `json:"children,omitempty"`
}

// lsblkInfo runs `lsblk -J -O -b <device>` and decodes the first device
// entry carrying a persistent identity attribute, searching children
// depth-first (a filesystem UUID usually lives on the partition, a child of
// the disk named by device); if none does, the first top-level entry.
func lsblkInfo(ctx context.Context, device string) (*Lsblk, string, error) {
	cmd := exec.CommandContext(ctx, "lsblk", "-J", "-O", "-b", device)
	out, err := cmd.Output()
	if err != nil {
		return nil, "", &diskerrors.MountProbeError{Directory: device, Err: err}
	}

	var doc lsblkDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, "", &diskerrors.MountProbeError{Directory: device, Err: err}
	}

	dev := firstWithIdentity(doc.BlockDevices)
	if dev == nil && len(doc.BlockDevices) > 0 {
		dev = &doc.BlockDevices[0]
	}
	if dev == nil {
		return nil, string(out), nil
	}

	return &Lsblk{
		Name: dev.Name, Path: dev.Path, Model: dev.Model, Serial: dev.Serial,
		Vendor: dev.Vendor, Size: dev.Size.String(), FSVer: dev.FSVer,
		PTType: dev.PTType, PTUUID: dev.PTUUID, PartType: dev.PartType,
		PartUUID: dev.PartUUID, PartTypeName: dev.PartTypeName, WWN: dev.WWN,
		MajMin: dev.MajMin, UUID: dev.UUID,
	}, string(out), nil
}

// firstWithIdentity walks device -> children depth-first looking for the
// first entry carrying a persistent identity attribute.
func firstWithIdentity(devices []lsblkDevice) *lsblkDevice {
	for i := range devices {
		d := &devices[i]
		if d.UUID != "" || d.PartUUID != "" || d.PTUUID != "" {
			return d
		}
		if found := firstWithIdentity(d.Children); found != nil {
			return found
		}
	}
	return nil
}
