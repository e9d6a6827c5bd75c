package diskutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsageReturnsPositiveTotals(t *testing.T) {
	snap, err := Usage(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, snap.TotalBytes, int64(0))
	require.GreaterOrEqual(t, snap.FreeBytes, int64(0))
}

func TestCapacityFuncIsBoundToPath(t *testing.T) {
	dir := t.TempDir()
	fn := CapacityFunc(dir)
	snap, err := fn()
	require.NoError(t, err)
	require.Greater(t, snap.TotalBytes, int64(0))
}

func TestUsageErrorsOnMissingPath(t *testing.T) {
	_, err := Usage("/path/does/not/exist/at/all")
	require.Error(t, err)
}
