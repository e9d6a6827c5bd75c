package mountprobe

import (
	"context"
	"encoding/json"
	"os/exec"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

type findmntDocument struct {
	Filesystems []struct {
		Target string `json:"target"`
		Source string `json:"source"`
	} `json:"filesystems"`
}

// findmnt resolves directory to its containing mount point and backing
// device via `findmnt -J -T <dir>`.
func findmnt(ctx context.Context, directory string) (mountPoint, device string, err error) {
	cmd := exec.CommandContext(ctx, "findmnt", "-J", "-T", directory)
	out, runErr := cmd.Output()
	if runErr != nil {
		return "", "", &diskerrors.MountProbeError{Directory: directory, Err: runErr}
	}

	var doc findmntDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return "", "", &diskerrors.MountProbeError{Directory: directory, Err: err}
	}
	if len(doc.Filesystems) == 0 {
		return "", "", &diskerrors.MountProbeError{Directory: directory, Err: errNoFilesystem}
	}
	fs := doc.Filesystems[0]
	return fs.Target, fs.Source, nil
}

var errNoFilesystem = &noFilesystemError{}

type noFilesystemError struct{}

func (*noFilesystemError) Error() string { return "findmnt returned no filesystems" }
