package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/from/env")
		assert.Equal(t, "/explicit", GetModelsDir("/explicit"))
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/from/env")
		assert.Equal(t, "/from/env", GetModelsDir(""))
	})

	t.Run("project default", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "")
		root, err := findProjectRoot()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, DefaultModelsDir), GetModelsDir(""))
	})
}

func TestResolveModelPath_OrganizedThenFlat(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, ClassifierModel), GetClassifierModelPath(dir))

	organized := filepath.Join(dir, TypeClassifier)
	require.NoError(t, os.MkdirAll(organized, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(organized, ClassifierModel), []byte("onnx"), 0o600))

	assert.Equal(t, filepath.Join(organized, ClassifierModel), GetClassifierModelPath(dir))
	// Labels are not in the organized dir, so the flat path is used.
	assert.Equal(t, filepath.Join(dir, LabelsFile), GetLabelsPath(dir))
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ClassifierModel)
	assert.Error(t, ValidateModelExists(p))

	require.NoError(t, os.WriteFile(p, []byte("onnx"), 0o600))
	assert.NoError(t, ValidateModelExists(p))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.Len(t, list, 2)
	assert.Equal(t, ClassifierModel, list[0].Filename)
	assert.Equal(t, LabelsFile, list[1].Filename)
}
