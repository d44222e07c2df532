//nolint:lll
package config

// Config represents the complete configuration for dermascan.
// It includes settings for all commands (scan, crop, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Log file rotation; empty LogFile keeps logs on stderr
	LogFile        string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
	LogMaxSizeMB   int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb" json:"log_max_size_mb"`
	LogMaxBackups  int    `mapstructure:"log_max_backups" yaml:"log_max_backups" json:"log_max_backups"`
	LogMaxAgeDays  int    `mapstructure:"log_max_age_days" yaml:"log_max_age_days" json:"log_max_age_days"`
	LogCompression bool   `mapstructure:"log_compress" yaml:"log_compress" json:"log_compress"`

	Model  ModelConfig  `mapstructure:"model" yaml:"model" json:"model"`
	Crop   CropConfig   `mapstructure:"crop" yaml:"crop" json:"crop"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
	GPU    GPUConfig    `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// ModelConfig contains classifier model settings.
type ModelConfig struct {
	ModelPath          string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LabelsPath         string   `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	InputSize          int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	MalignantThreshold float64  `mapstructure:"malignant_threshold" yaml:"malignant_threshold" json:"malignant_threshold"`
	OutputKind         string   `mapstructure:"output_kind" yaml:"output_kind" json:"output_kind"`
	PositiveLabel      string   `mapstructure:"positive_label" yaml:"positive_label" json:"positive_label"`
	NegativeLabel      string   `mapstructure:"negative_label" yaml:"negative_label" json:"negative_label"`
	PositiveLabels     []string `mapstructure:"positive_labels" yaml:"positive_labels" json:"positive_labels"`
	Interpolation      string   `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`
	NumThreads         int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Warmup             bool     `mapstructure:"warmup" yaml:"warmup" json:"warmup"`
}

// CropConfig contains crop geometry and artifact settings.
type CropConfig struct {
	MinimumSize   float64 `mapstructure:"minimum_size" yaml:"minimum_size" json:"minimum_size"`
	TargetBoxSize float64 `mapstructure:"target_box_size" yaml:"target_box_size" json:"target_box_size"`
	Mode          string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	OutputDir     string  `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Format        string  `mapstructure:"format" yaml:"format" json:"format"`
	Quality       int     `mapstructure:"quality" yaml:"quality" json:"quality"`

	// Preview viewport used when a request does not carry one
	PreviewWidth  float64 `mapstructure:"preview_width" yaml:"preview_width" json:"preview_width"`
	PreviewHeight float64 `mapstructure:"preview_height" yaml:"preview_height" json:"preview_height"`
}

// OutputConfig contains result formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`

	// Periodic cleanup. ArtifactTTLHours 0 keeps crop artifacts forever.
	CleanupIntervalMin int `mapstructure:"cleanup_interval_min" yaml:"cleanup_interval_min" json:"cleanup_interval_min"`
	ClientIdleHours    int `mapstructure:"client_idle_hours" yaml:"client_idle_hours" json:"client_idle_hours"`
	ArtifactTTLHours   int `mapstructure:"artifact_ttl_hours" yaml:"artifact_ttl_hours" json:"artifact_ttl_hours"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst" json:"burst"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int  `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
