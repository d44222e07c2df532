package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Bundled asset names.
const (
	ClassifierModel = "skin_lesion_classifier.onnx"
	LabelsFile      = "labels.txt"
)

// TypeClassifier is the organized subdirectory for classifier assets.
const TypeClassifier = "classifier"

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "DERMASCAN_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
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
	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a bundled asset.
type ModelInfo struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

// GetModelsDir returns the models directory path.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers <dir>/<type>/<file> and falls back to the flat
// <dir>/<file> layout.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetClassifierModelPath returns the path of the lesion classifier.
func GetClassifierModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeClassifier, ClassifierModel)
}

// GetLabelsPath returns the path of the label list.
func GetLabelsPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeClassifier, LabelsFile)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about the bundled assets.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "skin-lesion-classifier",
			Type:        TypeClassifier,
			Description: "Skin lesion image classifier (NHWC float32 input)",
			Filename:    ClassifierModel,
		},
		{
			Name:        "labels",
			Type:        TypeClassifier,
			Description: "Ordered class labels, one per line",
			Filename:    LabelsFile,
		},
	}
}
