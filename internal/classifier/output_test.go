package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretBinary_ThresholdBoundary(t *testing.T) {
	below := interpretBinary(0.29, 0.3, "Malignant", "Benign")
	assert.Equal(t, "Benign", below.Label)
	assert.InDelta(t, 0.71, below.Confidence, 1e-6)
	assert.False(t, below.IsPositive)

	at := interpretBinary(0.30, 0.3, "Malignant", "Benign")
	assert.Equal(t, "Malignant", at.Label)
	assert.InDelta(t, 0.30, at.Confidence, 1e-6)
	assert.True(t, at.IsPositive)
}

func TestInterpretBinary_HighThresholdUsesFloat32Compare(t *testing.T) {
	// float32(0.7) is slightly below 0.7 in float64.
	res := interpretBinary(0.7, 0.7, "Malignant", "Benign")
	assert.Equal(t, "Malignant", res.Label)
}

func TestInterpretMultiClass(t *testing.T) {
	labels := []string{"akiec", "bcc", "mel"}

	tests := []struct {
		name   string
		scores []float32
		label  string
		conf   float64
		index  int
	}{
		{"argmax in range", []float32{0.1, 0.7, 0.2}, "bcc", 0.7, 1},
		{"first of ties", []float32{0.4, 0.4, 0.2}, "akiec", 0.4, 0},
		{"index beyond labels falls back to 0", []float32{0.1, 0.1, 0.1, 0.7}, "akiec", 0.7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := interpretMultiClass(tt.scores, labels)
			assert.Equal(t, tt.label, res.Label)
			assert.InDelta(t, tt.conf, res.Confidence, 1e-6)
			assert.Equal(t, tt.index, res.ClassIndex)
		})
	}
}

func TestInterpretMultiClass_ReportsRawScore(t *testing.T) {
	score := float32(0.123456789)
	res := interpretMultiClass([]float32{0.01, score}, []string{"nv", "mel"})
	assert.Equal(t, "mel", res.Label)
	assert.Equal(t, float64(score), res.Confidence) //nolint:testifylint // exact passthrough

	pos := interpretBinary(score, 0.1, "Malignant", "Benign")
	assert.Equal(t, float64(score), pos.Confidence) //nolint:testifylint // exact passthrough
}

func TestResolveOutputKind(t *testing.T) {
	tests := []struct {
		name     string
		override OutputKind
		shape    []int64
		want     OutputKind
		wantErr  bool
	}{
		{"binary shape", OutputAuto, []int64{1, 1}, OutputBinary, false},
		{"multi-class shape", OutputAuto, []int64{1, 7}, OutputMultiClass, false},
		{"dynamic batch is fine", OutputAuto, []int64{-1, 2}, OutputMultiClass, false},
		{"dynamic classes need override", OutputAuto, []int64{1, -1}, "", true},
		{"no dims", OutputAuto, nil, "", true},
		{"override wins", OutputBinary, []int64{1, -1}, OutputBinary, false},
		{"override multiclass", OutputMultiClass, []int64{1, 1}, OutputMultiClass, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOutputKind(tt.override, tt.shape)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutputKind(t *testing.T) {
	k, err := ParseOutputKind("")
	require.NoError(t, err)
	assert.Equal(t, OutputAuto, k)

	k, err = ParseOutputKind(" MultiClass ")
	require.NoError(t, err)
	assert.Equal(t, OutputMultiClass, k)

	_, err = ParseOutputKind("regression")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, Describe("Malignant"), Describe("MALIGNANT"))
	assert.Equal(t, Describe("mel"), Describe("Mel"))
	assert.NotEqual(t, FallbackDescription, Describe("benign"))
	assert.Equal(t, FallbackDescription, Describe("freckle"))
	assert.Equal(t, FallbackDescription, Describe(""))
}

func TestLabelSet(t *testing.T) {
	s := newLabelSet([]string{"Malignant", "MEL"})
	assert.True(t, s.contains("malignant"))
	assert.True(t, s.contains("mel"))
	assert.False(t, s.contains("nv"))
}
