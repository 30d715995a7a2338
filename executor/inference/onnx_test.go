package inference

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
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestFindLibrary(t *testing.T) {
	root := t.TempDir()
	assert.Empty(t, findLibrary(root))

	wheel := filepath.Join(root, ".venv", "lib", "python3.11", "site-packages", "onnxruntime", "capi", "libonnxruntime.so.1.20.1")
	touch(t, wheel)
	assert.Equal(t, wheel, findLibrary(root))

	// A library next to the binary wins over the virtualenv.
	local := filepath.Join(root, "libonnxruntime.so")
	touch(t, local)
	assert.Equal(t, local, findLibrary(root))
}

func TestFindLibrarySkipsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "libonnxruntime.so"), 0o755))
	assert.Empty(t, findLibrary(root))
}
