package classifier

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/dermascan/internal/onnx"
	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInputDims(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		wantErr bool
	}{
		{"static NHWC", []int64{1, 224, 224, 3}, false},
		{"dynamic batch and spatial", []int64{-1, -1, -1, 3}, false},
		{"NCHW rejected", []int64{1, 3, 224, 224}, true},
		{"size mismatch", []int64{1, 299, 299, 3}, true},
		{"rank 3", []int64{224, 224, 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInputDims(tt.dims, 224)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenONNXSession_MissingModel(t *testing.T) {
	cfg := testConfig()
	cfg.ModelPath = t.TempDir() + "/none.onnx"
	_, _, err := openONNXSession(cfg)
	assert.Error(t, err)

	cfg.ModelPath = ""
	_, _, err = openONNXSession(cfg)
	assert.Error(t, err)
}

func TestClassifier_BundledModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ONNX model test in short mode")
	}
	modelPath, labelsPath := testutil.ModelPaths(t)
	if _, err := onnx.FindLibrary(false); err != nil {
		t.Skipf("ONNX Runtime not available: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ModelPath = modelPath
	cfg.LabelsPath = labelsPath
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Initialize())
	defer func() { _ = c.Close() }()

	res, err := c.Classify(context.Background(), testutil.LesionJPEG(t, 400, 300))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Label)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
