package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides shared library discovery.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var envMu sync.Mutex

// getLibraryName returns the appropriate library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// getSystemLibraryPaths returns system library paths to try, GPU builds first
// when useGPU is set.
func getSystemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	if useGPU {
		return append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

// findProjectRoot walks up from the working directory looking for go.mod or
// a bundled onnxruntime directory.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "onnxruntime")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// FindLibrary returns the first existing ONNX Runtime shared library.
// Order: LibraryPathEnv, system paths, then <project>/onnxruntime/{gpu/,}lib.
func FindLibrary(useGPU bool) (string, error) {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s=%s: %w", LibraryPathEnv, p, err)
		}
		return p, nil
	}

	for _, p := range getSystemLibraryPaths(useGPU) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return "", err
	}
	libName, err := getLibraryName()
	if err != nil {
		return "", err
	}

	var candidates []string
	if useGPU {
		candidates = append(candidates, filepath.Join(root, "onnxruntime", "gpu", "lib", libName))
	}
	candidates = append(candidates, filepath.Join(root, "onnxruntime", "lib", libName))
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found at %s", candidates[len(candidates)-1])
}

// EnsureEnvironment locates the shared library and initializes the global
// ONNX Runtime environment once per process.
func EnsureEnvironment(useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()

	if onnxrt.IsInitialized() {
		return nil
	}
	lib, err := FindLibrary(useGPU)
	if err != nil {
		return fmt.Errorf("onnx lib path: %w", err)
	}
	onnxrt.SetSharedLibraryPath(lib)
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	slog.Debug("onnx runtime initialized", "library", lib, "version", onnxrt.GetVersion())
	return nil
}

// ShutdownEnvironment destroys the global environment if it was created.
func ShutdownEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !onnxrt.IsInitialized() {
		return nil
	}
	return onnxrt.DestroyEnvironment()
}

// RuntimeInfo describes a working runtime installation.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

// CheckRuntime verifies that the runtime library loads.
func CheckRuntime(useGPU bool) (RuntimeInfo, error) {
	lib, err := FindLibrary(useGPU)
	if err != nil {
		return RuntimeInfo{}, fmt.Errorf("failed to find ONNX Runtime library: %w", err)
	}
	if err := EnsureEnvironment(useGPU); err != nil {
		return RuntimeInfo{LibraryPath: lib}, err
	}
	return RuntimeInfo{LibraryPath: lib, Version: onnxrt.GetVersion()}, nil
}
