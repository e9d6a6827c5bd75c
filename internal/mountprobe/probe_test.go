package mountprobe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildVolumeIDPriorityOrder(t *testing.T) {
	l := &Lsblk{Serial: "ABC123", Model: "Disk", UUID: "u-1", PTUUID: "pt-1"}
	id := buildVolumeID(l)
	require.Equal(t, "uuid=u-1|ptuuid=pt-1|serial=abc123|model=disk", id)
}

func TestBuildVolumeIDEmptyWhenNoFields(t *testing.T) {
	require.Equal(t, "", buildVolumeID(&Lsblk{}))
	require.Equal(t, "", buildVolumeID(nil))
}

func TestMountInfoIsComplete(t *testing.T) {
	require.False(t, (*MountInfo)(nil).IsComplete())
	require.False(t, (&MountInfo{}).IsComplete())
	require.True(t, (&MountInfo{UUID: "u-1"}).IsComplete())
	require.True(t, (&MountInfo{Lsblk: &Lsblk{Serial: "s-1"}}).IsComplete())
	require.False(t, (&MountInfo{Lsblk: &Lsblk{Model: "only-model"}}).IsComplete())
}

func TestFallbackProbeReturnsFilesystemAnchor(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	info, err := fallbackProbe(nested)
	require.NoError(t, err)
	require.NotEmpty(t, info.VolumeID)
	require.Equal(t, info.Device, info.VolumeID)
	require.Equal(t, info.MountPoint, info.VolumeID)
}

func TestSplitFields(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitFields("a  b\tc"))
	fields := splitFields("/dev/sda1 /mnt/data ext4 rw 0 0")
	require.Equal(t, []string{"/dev/sda1", "/mnt/data", "ext4", "rw", "0", "0"}, fields)
}

func TestNewHostMountSetDoesNotPanicWithoutProcMounts(t *testing.T) {
	set := NewHostMountSet()
	require.NotNil(t, set)
	require.False(t, set.IsMountPoint("/definitely/not/mounted/xyz"))
}
