package classifier

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// OutputKind selects how the raw model output is interpreted.
type OutputKind string

const (
	// OutputAuto infers the kind from the declared output shape.
	OutputAuto OutputKind = "auto"
	// OutputBinary is a single sigmoid probability, shape [1, 1].
	OutputBinary OutputKind = "binary"
	// OutputMultiClass is a softmax distribution, shape [1, K].
	OutputMultiClass OutputKind = "multiclass"
)

// ParseOutputKind validates an output kind name. Empty means auto.
func ParseOutputKind(s string) (OutputKind, error) {
	switch k := OutputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", OutputAuto:
		return OutputAuto, nil
	case OutputBinary, OutputMultiClass:
		return k, nil
	default:
		return "", fmt.Errorf("invalid output kind: %s (must be one of: auto, binary, multiclass)", s)
	}
}

// resolveOutputKind picks the output contract once, at load time.
func resolveOutputKind(override OutputKind, shape []int64) (OutputKind, error) {
	if override == OutputBinary || override == OutputMultiClass {
		return override, nil
	}
	if len(shape) == 0 {
		return "", errors.New("model declares no output dimensions")
	}
	switch k := shape[len(shape)-1]; {
	case k == 1:
		return OutputBinary, nil
	case k > 1:
		return OutputMultiClass, nil
	default:
		return "", fmt.Errorf("output shape %v has a dynamic class dimension; set model.output_kind", shape)
	}
}

// interpretBinary applies the decision threshold to a sigmoid probability.
// The reported confidence is for the predicted class.
func interpretBinary(p float32, threshold float64, positive, negative string) Result {
	if p >= float32(threshold) {
		return Result{Label: positive, Confidence: float64(p), IsPositive: true}
	}
	return Result{Label: negative, Confidence: 1 - float64(p)}
}

// interpretMultiClass picks the argmax. An index outside the label list
// falls back to label 0.
func interpretMultiClass(scores []float32, labels []string) Result {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	conf := float64(scores[best])
	idx := best
	if idx >= len(labels) {
		idx = 0
	}
	return Result{Label: labels[idx], Confidence: conf, ClassIndex: idx}
}

func checkFinite(out []float32) error {
	for i, v := range out {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("non-finite output at index %d", i)
		}
	}
	return nil
}
