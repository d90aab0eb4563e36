package idspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateIsPermutation(t *testing.T) {
	ids := Generate(1000)
	require.Len(t, ids, 1000)

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		require.GreaterOrEqual(t, id, int64(1))
		require.LessOrEqual(t, id, int64(1000))
		require.False(t, seen[id], "id %d appears twice", id)
		seen[id] = true
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids", "list.txt")
	ids := []int64{5, 1, 9, 3}

	require.NoError(t, Save(path, ids))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ids, loaded, "load must preserve order exactly")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, Save(path, []int64{1}))

	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1\nnope\n3\n"), 0o644))
	_, err := Load(bad)
	require.Error(t, err)
}

func TestIndexOf(t *testing.T) {
	ids := []int64{5, 1, 9}

	idx, ok := IndexOf(ids, 9)
	require.True(t, ok)
	require.Equal(t, 2, idx)

	_, ok = IndexOf(ids, 7)
	require.False(t, ok)
}
