package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// ModelPaths returns the bundled classifier and labels paths, skipping the
// test when either is missing.
func ModelPaths(t *testing.T) (string, string) {
	t.Helper()

	dir := models.GetModelsDir("")
	model := models.GetClassifierModelPath(dir)
	labels := models.GetLabelsPath(dir)
	for _, p := range []string{model, labels} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("model asset not available: %s", p)
		}
	}
	return model, labels
}

// WriteLabels writes a labels file into a temp dir and returns its path.
func WriteLabels(t *testing.T, labels ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), models.LabelsFile)
	var data []byte
	for _, l := range labels {
		data = append(data, l...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}
