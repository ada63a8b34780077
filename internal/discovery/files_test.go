package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
}

func TestFindRecursiveSorted(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "B", "z.json"))
	touch(t, filepath.Join(root, "A", "B", "c.json"))
	touch(t, filepath.Join(root, "A", "a.JSON"))
	touch(t, filepath.Join(root, "A", "notes.txt"))
	touch(t, filepath.Join(root, "top.json"))

	files, err := Find(root, ".json")
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "A", "B", "c.json"),
		filepath.Join(root, "A", "a.JSON"),
		filepath.Join(root, "B", "z.json"),
		filepath.Join(root, "top.json"),
	}
	assert.Equal(t, want, files)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f))
	}
}

func TestFindExtensionWithoutDot(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.json"))

	files, err := Find(root, "json")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFindEmptyTree(t *testing.T) {
	files, err := Find(t.TempDir(), ".json")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFindMissingRoot(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "missing"), ".json")
	assert.Error(t, err)
}
