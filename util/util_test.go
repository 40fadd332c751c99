package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	for _, name := range []string{"a.MID", "b.txt", "sub/c.mml", "d.wav"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	paths, err := GatherPaths(dir, []string{".mid", ".mml"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.MID"), filepath.Join(dir, "sub", "c.mml")}, paths)

	paths, err = GatherPaths(dir, []string{".mid", ".mml"}, 1)
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	_, err = GatherPaths(filepath.Join(dir, "missing"), nil, 0)
	assert.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []uint32{1, 2, 5}, SortedKeys(map[uint32]string{5: "", 1: "", 2: ""}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 15))
	assert.Equal(t, 15, Clamp(20, 0, 15))
	assert.Equal(t, 7, Clamp(7, 0, 15))
}

func TestSum(t *testing.T) {
	assert.Equal(t, uint64(6), Sum([]int{1, 2, 3}))
}
