package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/mempool"
	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/MeKo-Tech/dermascan/internal/onnx"
	"github.com/MeKo-Tech/dermascan/internal/utils"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"
)

// Session runs one forward pass over an NHWC float32 tensor and returns the
// first output with its shape.
type Session interface {
	Run(input []float32, shape []int64) ([]float32, []int64, error)
	Close() error
}

// Config controls model loading and output interpretation.
type Config struct {
	ModelPath      string
	LabelsPath     string
	InputSize      int     // N; the model input is [1, N, N, 3]
	Threshold      float64 // binary decision threshold T
	OutputKind     OutputKind
	PositiveLabel  string
	NegativeLabel  string
	PositiveLabels []string // multi-class labels reported as positive
	Interpolation  string
	NumThreads     int
	GPU            onnx.GPUConfig
	Warmup         bool
}

// DefaultConfig provides the stock model settings.
func DefaultConfig() Config {
	return Config{
		ModelPath:      models.GetClassifierModelPath(""),
		LabelsPath:     models.GetLabelsPath(""),
		InputSize:      224,
		Threshold:      0.3,
		OutputKind:     OutputAuto,
		PositiveLabel:  "Malignant",
		NegativeLabel:  "Benign",
		PositiveLabels: slices.Clone(DefaultPositiveLabels),
		Interpolation:  "linear",
		GPU:            onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPaths relocates model and labels under modelsDir.
func (c *Config) UpdateModelPaths(modelsDir string) {
	c.ModelPath = models.GetClassifierModelPath(modelsDir)
	c.LabelsPath = models.GetLabelsPath(modelsDir)
}

// Validate checks the settings that do not need the model file.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", c.Threshold)
	}
	if _, err := ParseOutputKind(string(c.OutputKind)); err != nil {
		return err
	}
	if _, err := ParseInterpolation(c.Interpolation); err != nil {
		return err
	}
	if strings.TrimSpace(c.PositiveLabel) == "" || strings.TrimSpace(c.NegativeLabel) == "" {
		return errors.New("positive and negative labels must not be empty")
	}
	return onnx.ValidateGPUConfig(c.GPU)
}

// ParseInterpolation maps a filter name to an imaging filter.
func ParseInterpolation(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "bilinear":
		return imaging.Linear, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "catmullrom", "bicubic":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("invalid interpolation: %s (must be one of: linear, nearest, catmullrom, lanczos)", name)
	}
}

// Result is the terminal classification record.
type Result struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	IsPositive  bool    `json:"is_positive"`
	Description string  `json:"description"`
	ClassIndex  int     `json:"class_index"`
	InferenceMs int64   `json:"inference_ms"`
}

// ModelInfo summarizes the loaded model.
type ModelInfo struct {
	Ready       bool       `json:"ready"`
	ModelPath   string     `json:"model_path"`
	LabelsPath  string     `json:"labels_path"`
	InputSize   int        `json:"input_size"`
	InputShape  []int64    `json:"input_shape"`
	OutputKind  OutputKind `json:"output_kind"`
	OutputShape []int64    `json:"output_shape,omitempty"`
	Labels      []string   `json:"labels"`
	Threshold   float64    `json:"threshold"`
}

// Classifier owns the process-wide inference session. At most one inference
// runs at a time.
type Classifier struct {
	cfg    Config
	filter imaging.ResampleFilter
	gate   *semaphore.Weighted

	mu          sync.RWMutex
	session     Session
	labels      []string
	kind        OutputKind
	outputShape []int64
	positives   labelSet
}

// New returns an unloaded classifier. Call Initialize before classifying.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	filter, _ := ParseInterpolation(cfg.Interpolation)
	if len(cfg.PositiveLabels) == 0 {
		cfg.PositiveLabels = slices.Clone(DefaultPositiveLabels)
	}
	return &Classifier{
		cfg:       cfg,
		filter:    filter,
		gate:      semaphore.NewWeighted(1),
		positives: newLabelSet(append(slices.Clone(cfg.PositiveLabels), cfg.PositiveLabel)),
	}, nil
}

// NewWithSession builds a ready classifier around an existing session, for
// runtimes other than the bundled ONNX loader.
func NewWithSession(cfg Config, sess Session, outputShape []int64, labels []string) (*Classifier, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := c.attach(sess, outputShape, labels); err != nil {
		return nil, err
	}
	return c, nil
}

// Initialize loads labels and the ONNX model. Calling it on a ready
// classifier is a no-op.
func (c *Classifier) Initialize() error {
	if c.IsReady() {
		return nil
	}

	labels, err := models.LoadLabels(c.cfg.LabelsPath)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return fmt.Errorf("labels file %s contains no labels", c.cfg.LabelsPath)
	}

	start := time.Now()
	sess, outShape, err := openONNXSession(c.cfg)
	if err != nil {
		return fmt.Errorf("load model %s: %w", c.cfg.ModelPath, err)
	}
	kind, err := c.attach(sess, outShape, labels)
	if err != nil {
		_ = sess.Close()
		return err
	}
	slog.Info("classifier initialized",
		"model", c.cfg.ModelPath,
		"labels", len(labels),
		"output_kind", kind,
		"duration_ms", time.Since(start).Milliseconds())

	if c.cfg.Warmup {
		c.warmup()
	}
	return nil
}

// attach installs sess and returns the output contract resolved for it.
func (c *Classifier) attach(sess Session, outputShape []int64, labels []string) (OutputKind, error) {
	if sess == nil {
		return "", errors.New("nil session")
	}
	kind, err := resolveOutputKind(c.cfg.OutputKind, outputShape)
	if err != nil {
		return "", err
	}
	if kind == OutputMultiClass && len(outputShape) > 0 {
		if k := outputShape[len(outputShape)-1]; k > 0 && int(k) != len(labels) {
			slog.Warn("label count does not match model classes", "labels", len(labels), "classes", k)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	c.labels = slices.Clone(labels)
	c.kind = kind
	c.outputShape = slices.Clone(outputShape)
	return kind, nil
}

func (c *Classifier) warmup() {
	n := c.cfg.InputSize
	start := time.Now()
	_, err := c.ClassifyImage(context.Background(), image.NewNRGBA(image.Rect(0, 0, n, n)))
	if err != nil {
		slog.Warn("classifier warmup failed", "error", err)
		return
	}
	slog.Debug("classifier warmup complete", "duration_ms", time.Since(start).Milliseconds())
}

// IsReady reports whether labels are loaded and a session is open.
func (c *Classifier) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && len(c.labels) > 0
}

// Close waits for any running inference and releases the session.
func (c *Classifier) Close() error {
	_ = c.gate.Acquire(context.Background(), 1)
	defer c.gate.Release(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.labels = nil
	return err
}

// Info describes the classifier's current model.
func (c *Classifier) Info() ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := int64(c.cfg.InputSize)
	return ModelInfo{
		Ready:       c.session != nil && len(c.labels) > 0,
		ModelPath:   c.cfg.ModelPath,
		LabelsPath:  c.cfg.LabelsPath,
		InputSize:   c.cfg.InputSize,
		InputShape:  []int64{1, n, n, 3},
		OutputKind:  c.kind,
		OutputShape: slices.Clone(c.outputShape),
		Labels:      slices.Clone(c.labels),
		Threshold:   c.cfg.Threshold,
	}
}

// Config returns the classifier configuration.
func (c *Classifier) Config() Config { return c.cfg }

// Classify decodes image bytes and classifies them. Readiness is checked
// before any decoding.
func (c *Classifier) Classify(ctx context.Context, data []byte) (*Result, error) {
	if !c.IsReady() {
		return nil, ErrModelNotReady
	}
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return c.ClassifyImage(ctx, img)
}

// ClassifyImage runs resize, normalize, inference and interpretation on an
// already decoded image. ctx only bounds the wait for the inference slot.
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) (*Result, error) {
	if !c.IsReady() {
		return nil, ErrModelNotReady
	}
	if img == nil {
		return nil, &DecodeError{Err: errors.New("nil image")}
	}

	n := c.cfg.InputSize
	resized, err := utils.ResizeSquare(img, n, c.filter)
	if err != nil {
		return nil, &InferenceError{Operation: "preprocess", Err: err}
	}
	data, w, h, err := utils.NormalizeNHWC(resized)
	if err != nil {
		return nil, &InferenceError{Operation: "preprocess", Err: err}
	}
	defer mempool.PutFloat32(data)

	tensor, err := onnx.NewNHWCTensor(data, h, w, 3)
	if err == nil {
		err = onnx.VerifyNHWCTensor(tensor)
	}
	if err != nil {
		return nil, &InferenceError{Operation: "tensor", Err: err}
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		lo, hi, mean := onnx.TensorStats(tensor.Data)
		slog.Debug("input tensor", "shape", tensor.Shape, "min", lo, "max", hi, "mean", mean)
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.gate.Release(1)

	c.mu.RLock()
	sess, labels, kind := c.session, c.labels, c.kind
	c.mu.RUnlock()
	if sess == nil || len(labels) == 0 {
		return nil, ErrModelNotReady
	}

	start := time.Now()
	out, outShape, err := sess.Run(tensor.Data, tensor.Shape)
	if err != nil {
		return nil, &InferenceError{Operation: "run", Err: err}
	}
	elapsed := time.Since(start)

	res, err := c.interpret(kind, labels, out, outShape)
	if err != nil {
		return nil, err
	}
	res.Description = Describe(res.Label)
	res.InferenceMs = elapsed.Milliseconds()
	slog.Debug("classified", "label", res.Label, "confidence", res.Confidence, "duration_ms", res.InferenceMs)
	return res, nil
}

func (c *Classifier) interpret(kind OutputKind, labels []string, out []float32, shape []int64) (*Result, error) {
	if len(out) == 0 {
		return nil, &InferenceError{Operation: "output", Err: fmt.Errorf("empty output (shape %v)", shape)}
	}
	if err := checkFinite(out); err != nil {
		return nil, &InferenceError{Operation: "output", Err: err}
	}

	var res Result
	switch kind {
	case OutputBinary:
		if len(out) != 1 {
			return nil, &InferenceError{
				Operation: "output",
				Err:       fmt.Errorf("binary model returned %d values (shape %v)", len(out), shape),
			}
		}
		p := min(max(out[0], 0), 1)
		res = interpretBinary(p, c.cfg.Threshold, c.cfg.PositiveLabel, c.cfg.NegativeLabel)
		if res.IsPositive {
			res.ClassIndex = 1
		}
	default:
		res = interpretMultiClass(out, labels)
		res.IsPositive = c.positives.contains(res.Label)
	}
	return &res, nil
}
