package config

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/MeKo-Tech/dermascan/internal/onnx"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/utils"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	cls := classifier.DefaultConfig()
	crop := scan.DefaultConfig()
	return Config{
		ModelsDir:     models.DefaultModelsDir,
		LogLevel:      "info",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
		Model: ModelConfig{
			InputSize:          cls.InputSize,
			MalignantThreshold: cls.Threshold,
			OutputKind:         string(cls.OutputKind),
			PositiveLabel:      cls.PositiveLabel,
			NegativeLabel:      cls.NegativeLabel,
			PositiveLabels:     slices.Clone(cls.PositiveLabels),
			Interpolation:      cls.Interpolation,
			Warmup:             true,
		},
		Crop: CropConfig{
			MinimumSize:   crop.MinCropSize,
			TargetBoxSize: crop.TargetBoxSize,
			Mode:          string(crop.DefaultMode),
			Format:        string(crop.Format),
			Quality:       crop.Quality,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				Burst:             10,
			},
			CleanupIntervalMin: 10,
			ClientIdleHours:    24,
			ArtifactTTLHours:   24,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Model.InputSize <= 0 {
		return fmt.Errorf("invalid model.input_size: %d (must be positive)", c.Model.InputSize)
	}
	if err := validateThreshold(c.Model.MalignantThreshold, "model.malignant_threshold"); err != nil {
		return err
	}
	if _, err := classifier.ParseOutputKind(c.Model.OutputKind); err != nil {
		return err
	}
	if _, err := classifier.ParseInterpolation(c.Model.Interpolation); err != nil {
		return err
	}
	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model.num_threads: %d (must not be negative)", c.Model.NumThreads)
	}

	if c.Crop.MinimumSize < 0 || !isFinite(c.Crop.MinimumSize) {
		return fmt.Errorf("invalid crop.minimum_size: %v (must not be negative)", c.Crop.MinimumSize)
	}
	if c.Crop.TargetBoxSize <= 0 || !isFinite(c.Crop.TargetBoxSize) {
		return fmt.Errorf("invalid crop.target_box_size: %v (must be positive)", c.Crop.TargetBoxSize)
	}
	if c.Crop.PreviewWidth < 0 || c.Crop.PreviewHeight < 0 ||
		!isFinite(c.Crop.PreviewWidth) || !isFinite(c.Crop.PreviewHeight) {
		return fmt.Errorf("invalid crop preview size: %vx%v (must not be negative)", c.Crop.PreviewWidth, c.Crop.PreviewHeight)
	}
	if _, err := geometry.ParseMode(c.Crop.Mode); err != nil {
		return err
	}
	if _, err := utils.ParseFormat(c.Crop.Format); err != nil {
		return err
	}
	if c.Crop.Quality < 1 || c.Crop.Quality > 100 {
		return fmt.Errorf("invalid crop.quality: %d (must be between 1 and 100)", c.Crop.Quality)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.CleanupIntervalMin < 0 || c.Server.ClientIdleHours < 0 || c.Server.ArtifactTTLHours < 0 {
		return fmt.Errorf("invalid server cleanup settings: values must not be negative")
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.Burst < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit settings: limits must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("invalid log rotation settings: values must not be negative")
	}

	if c.GPU.MemoryLimit != "auto" && c.GPU.MemoryLimit != "" {
		if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
			return fmt.Errorf("invalid GPU memory limit: %w", err)
		}
	}

	return nil
}

// ToClassifierConfig converts the config to the classifier configuration.
func (c *Config) ToClassifierConfig() classifier.Config {
	cfg := classifier.DefaultConfig()
	cfg.UpdateModelPaths(c.ModelsDir)
	if c.Model.ModelPath != "" {
		cfg.ModelPath = c.Model.ModelPath
	}
	if c.Model.LabelsPath != "" {
		cfg.LabelsPath = c.Model.LabelsPath
	}
	cfg.InputSize = c.Model.InputSize
	cfg.Threshold = c.Model.MalignantThreshold
	cfg.OutputKind = classifier.OutputKind(strings.ToLower(c.Model.OutputKind))
	if c.Model.PositiveLabel != "" {
		cfg.PositiveLabel = c.Model.PositiveLabel
	}
	if c.Model.NegativeLabel != "" {
		cfg.NegativeLabel = c.Model.NegativeLabel
	}
	if len(c.Model.PositiveLabels) > 0 {
		cfg.PositiveLabels = slices.Clone(c.Model.PositiveLabels)
	}
	cfg.Interpolation = c.Model.Interpolation
	cfg.NumThreads = c.Model.NumThreads
	cfg.Warmup = c.Model.Warmup
	cfg.GPU = c.toGPUConfig()
	return cfg
}

// toGPUConfig converts to onnx.GPUConfig.
func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	if limit, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = limit
	}
	return cfg
}

// ToScanConfig converts the config to the scan configuration.
func (c *Config) ToScanConfig() (scan.Config, error) {
	mode, err := geometry.ParseMode(c.Crop.Mode)
	if err != nil {
		return scan.Config{}, err
	}
	format, err := utils.ParseFormat(c.Crop.Format)
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{
		OutputDir:     c.Crop.OutputDir,
		Format:        format,
		Quality:       c.Crop.Quality,
		TargetBoxSize: c.Crop.TargetBoxSize,
		MinCropSize:   c.Crop.MinimumSize,
		DefaultMode:   mode,
		Viewport:      geometry.Viewport{Width: c.Crop.PreviewWidth, Height: c.Crop.PreviewHeight},
	}, nil
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 || math.IsNaN(value) {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses limits such as "1GB" or "512MB" into bytes.
// "auto" and the empty string mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	limit = strings.ToUpper(strings.TrimSpace(limit))
	if limit == "" || limit == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		scale  float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(limit, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(limit, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
