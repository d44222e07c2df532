package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	switch runtime.GOOS {
	case "linux":
		require.NoError(t, err)
		assert.Equal(t, "libonnxruntime.so", name)
	case "darwin":
		require.NoError(t, err)
		assert.Equal(t, "libonnxruntime.dylib", name)
	case "windows":
		require.NoError(t, err)
		assert.Equal(t, "onnxruntime.dll", name)
	default:
		assert.Error(t, err)
	}
}

func TestSystemLibraryPaths_GPUFirst(t *testing.T) {
	cpu := getSystemLibraryPaths(false)
	gpu := getSystemLibraryPaths(true)

	require.NotEmpty(t, cpu)
	assert.Len(t, gpu, len(cpu)+1)
	assert.True(t, strings.Contains(gpu[0], "gpu"))
	for _, p := range cpu {
		assert.NotContains(t, p, "/gpu/")
	}
}

func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, statErr)
}

func TestFindLibrary_EnvOverride(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte{0}, 0o600))

	t.Setenv(LibraryPathEnv, lib)
	got, err := FindLibrary(false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	t.Setenv(LibraryPathEnv, filepath.Join(t.TempDir(), "missing.so"))
	_, err = FindLibrary(false)
	assert.Error(t, err)
}
