package benchmark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct{ calls int }

func (s *stubClassifier) IsReady() bool { return true }

func (s *stubClassifier) ClassifyImage(_ context.Context, _ image.Image) (*classifier.Result, error) {
	s.calls++
	return &classifier.Result{Label: "Benign", Confidence: 0.9}, nil
}

func TestSuiteRun(t *testing.T) {
	suite := NewSuite()
	suite.Add("success_test", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	suite.Add("error_test", func() error {
		return errors.New("test error")
	})

	result := suite.Run("success_test", 5)
	assert.Equal(t, 5, result.Iterations)
	require.NoError(t, result.Error)
	assert.Positive(t, result.Duration)
	assert.Positive(t, result.Average())

	result = suite.Run("error_test", 3)
	require.Error(t, result.Error)
	assert.Zero(t, result.Iterations)
	assert.Contains(t, result.String(), "ERROR - test error")

	result = suite.Run("non_existent", 1)
	assert.ErrorContains(t, result.Error, "not found")
}

func TestSuiteRunAll(t *testing.T) {
	suite := NewSuite()
	var order []string
	suite.Add("first", func() error { order = append(order, "first"); return nil })
	suite.Add("second", func() error { order = append(order, "second"); return nil })

	results := suite.RunAll(2)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"first", "first", "second", "second"}, order)
	assert.Equal(t, results, suite.Results())
}

func TestTimer(t *testing.T) {
	timer := NewTimer("decode")
	time.Sleep(time.Millisecond)
	d := timer.Stop()
	assert.Equal(t, d, timer.Duration())
	assert.True(t, strings.HasPrefix(timer.String(), "decode: "))
}

func TestScanBenchmark_CropOnly(t *testing.T) {
	cfg := scan.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	scanner, err := scan.New(cfg, nil)
	require.NoError(t, err)

	b, err := NewScanBenchmark(scanner, []testutil.ImageSize{{Width: 120, Height: 160}})
	require.NoError(t, err)

	results := b.RunAll(2)
	require.Len(t, results, 1)
	assert.Equal(t, "Crop_120x160", results[0].Name)
	require.NoError(t, results[0].Error)
	assert.Equal(t, 2, results[0].Iterations)
}

func TestScanBenchmark_WithModel(t *testing.T) {
	cfg := scan.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cls := &stubClassifier{}
	scanner, err := scan.New(cfg, cls)
	require.NoError(t, err)

	b, err := NewScanBenchmark(scanner, []testutil.ImageSize{{Width: 100, Height: 100}})
	require.NoError(t, err)

	results := b.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, "Scan_100x100", results[1].Name)
	require.NoError(t, results[1].Error)
	assert.Equal(t, 3, cls.calls)
}

func TestNewScanBenchmark_RequiresScanner(t *testing.T) {
	_, err := NewScanBenchmark(nil, nil)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	results := []Result{
		{Name: "Crop_1x1", Duration: 4 * time.Millisecond, Iterations: 2},
		{Name: "Scan_1x1", Error: errors.New("boom")},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, results))

	out := buf.String()
	assert.Contains(t, out, "Crop_1x1: 2 iterations, avg: 2ms")
	assert.Contains(t, out, "Crop_1x1,2,2.00,4.00,0,\"\"")
	assert.Contains(t, out, "Scan_1x1,0,0.00,0.00,0,\"boom\"")
}
