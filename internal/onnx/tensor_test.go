package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNHWCTensor(t *testing.T) {
	data := make([]float32, 4*5*3)
	tensor, err := NewNHWCTensor(data, 4, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 5, 3}, tensor.Shape)
	assert.NoError(t, VerifyNHWCTensor(tensor))

	_, err = NewNHWCTensor(nil, 1, 1, 3)
	assert.Error(t, err)
	_, err = NewNHWCTensor(make([]float32, 5), 1, 1, 3)
	assert.Error(t, err)
}

func TestValidateNHWC(t *testing.T) {
	assert.NoError(t, ValidateNHWC([]int64{1, 224, 224, 3}))
	assert.Error(t, ValidateNHWC([]int64{1, 224, 224}))
	assert.Error(t, ValidateNHWC([]int64{1, -1, 224, 3}))
}

func TestVerifyNHWCTensor_LengthMismatch(t *testing.T) {
	err := VerifyNHWCTensor(Tensor{Data: make([]float32, 10), Shape: []int64{1, 2, 2, 3}})
	assert.Error(t, err)
}

func TestTensorStats(t *testing.T) {
	lo, hi, mean := TensorStats([]float32{0.5, 0, 1, 0.5})
	assert.InDelta(t, 0, lo, 1e-6)
	assert.InDelta(t, 1, hi, 1e-6)
	assert.InDelta(t, 0.5, mean, 1e-6)

	lo, hi, mean = TensorStats(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
	assert.Zero(t, mean)
}
