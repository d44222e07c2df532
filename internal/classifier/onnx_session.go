package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/MeKo-Tech/dermascan/internal/onnx"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// onnxSession adapts a DynamicAdvancedSession to Session.
type onnxSession struct {
	session *onnxrt.DynamicAdvancedSession
}

func openONNXSession(cfg Config) (Session, []int64, error) {
	if cfg.ModelPath == "" {
		return nil, nil, errors.New("empty model path")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, nil, err
	}
	if err := onnx.EnsureEnvironment(cfg.GPU.UseGPU); err != nil {
		return nil, nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("io info: %w", err)
	}
	in, out, err := validateModelIO(inputs, outputs, cfg.InputSize)
	if err != nil {
		return nil, nil, err
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("session opts: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()
	if err := onnx.ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		return nil, nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		_ = opts.SetIntraOpNumThreads(cfg.NumThreads)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("session: %w", err)
	}
	return &onnxSession{session: sess}, slices.Clone([]int64(out.Dimensions)), nil
}

// validateModelIO requires one float NHWC input compatible with inputSize
// and one output.
func validateModelIO(inputs, outputs []onnxrt.InputOutputInfo, inputSize int) (onnxrt.InputOutputInfo, onnxrt.InputOutputInfo, error) {
	var zero onnxrt.InputOutputInfo
	if len(inputs) != 1 || len(outputs) < 1 {
		return zero, zero, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	if in.DataType != onnxrt.TensorElementDataTypeFloat {
		return zero, zero, fmt.Errorf("input %s is %v, want float32", in.Name, in.DataType)
	}
	if err := checkInputDims(in.Dimensions, inputSize); err != nil {
		return zero, zero, fmt.Errorf("input %s: %w", in.Name, err)
	}
	return in, out, nil
}

func checkInputDims(dims []int64, n int) error {
	if len(dims) != 4 {
		return fmt.Errorf("expected 4D NHWC input, got %dD", len(dims))
	}
	if c := dims[3]; c > 0 && c != 3 {
		return fmt.Errorf("expected 3 channels in last dimension, got %v", dims)
	}
	for _, d := range dims[1:3] {
		if d > 0 && d != int64(n) {
			return fmt.Errorf("model expects %dx%d input but input size is %d", dims[1], dims[2], n)
		}
	}
	return nil
}

func (s *onnxSession) Run(input []float32, shape []int64) ([]float32, []int64, error) {
	in, err := onnxrt.NewTensor(onnxrt.NewShape(shape...), input)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := in.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := s.session.Run([]onnxrt.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				slog.Warn("failed to destroy output tensor", "error", err)
			}
		}
	}()

	t, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	// Output memory is released with the tensor.
	return slices.Clone(t.GetData()), slices.Clone([]int64(t.GetShape())), nil
}

func (s *onnxSession) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
