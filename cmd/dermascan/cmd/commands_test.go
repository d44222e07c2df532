package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useFakeClassifier makes commands load a classifier around sess.
func useFakeClassifier(t *testing.T, sess *testutil.FakeSession) {
	t.Helper()
	old := newClassifier
	newClassifier = func(cfg classifier.Config) (*classifier.Classifier, error) {
		cfg.InputSize = 32
		return classifier.NewWithSession(cfg, sess, sess.OutputShape, []string{"Benign", "Malignant"})
	}
	t.Cleanup(func() { newClassifier = old })
}

// runCommand calls cmd's RunE with the given flags and captures stdout.
func runCommand(t *testing.T, cmd *cobra.Command, flags map[string]string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		resetFlags(cmd)
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value), name)
	}

	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func writeLesion(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, testutil.LesionJPEG(t, w, h), 0o600))
	return path
}

func TestCropCommand_PortraitPreview(t *testing.T) {
	dir := t.TempDir()
	img := writeLesion(t, dir, "lesion.jpg", 1200, 1600)

	out, err := runCommand(t, cropCmd, map[string]string{
		"preview-width":  "390",
		"preview-height": "520",
		"box":            "220",
		"crop-dir":       dir,
	}, img)
	require.NoError(t, err)

	assert.Contains(t, out, "Source: 1200x1600")
	assert.Contains(t, out, "Crop: 262,462,677,677")
	assert.FileExists(t, filepath.Join(dir, "lesion-crop.jpg"))
}

func TestCropCommand_RectToPNG(t *testing.T) {
	dir := t.TempDir()
	img := writeLesion(t, dir, "wide.jpg", 400, 300)
	target := filepath.Join(dir, "out", "crop.png")

	out, err := runCommand(t, cropCmd, map[string]string{
		"rect":   "10,20,100,50",
		"save":   target,
		"format": "json",
	}, img)
	require.NoError(t, err)

	var res struct {
		Mode string `json:"mode"`
		Crop struct {
			X, Y, Width, Height int
		} `json:"crop"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "rect", res.Mode)
	assert.Equal(t, target, res.Path)
	assert.Equal(t, 10, res.Crop.X)
	assert.Equal(t, 20, res.Crop.Y)
	assert.Equal(t, 100, res.Crop.Width)
	assert.FileExists(t, target)
}

func TestCropCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	img := writeLesion(t, dir, "lesion.jpg", 100, 100)

	tests := []struct {
		name  string
		flags map[string]string
		args  []string
	}{
		{"missing file", nil, []string{filepath.Join(dir, "missing.jpg")}},
		{"bad rect", map[string]string{"rect": "1,2"}, []string{img}},
		{"bad mode", map[string]string{"mode": "oval"}, []string{img}},
		{"rect mode without rect", map[string]string{"mode": "rect"}, []string{img}},
		{"bad format", map[string]string{"format": "xml"}, []string{img}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, cropCmd, tt.flags, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestScanCommand_Benign(t *testing.T) {
	sess := testutil.NewBinarySession(0.29)
	useFakeClassifier(t, sess)
	dir := t.TempDir()
	img := writeLesion(t, dir, "arm.jpg", 1200, 1600)

	out, err := runCommand(t, scanCmd, map[string]string{
		"preview-width":  "390",
		"preview-height": "520",
		"crop-dir":       dir,
		"format":         "json",
	}, img)
	require.NoError(t, err)

	var res struct {
		Filename       string `json:"filename"`
		CroppedPath    string `json:"cropped_path"`
		Classification struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
			IsPositive bool    `json:"is_positive"`
		} `json:"classification"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "arm.jpg", res.Filename)
	assert.Equal(t, "Benign", res.Classification.Label)
	assert.InDelta(t, 0.71, res.Classification.Confidence, 1e-6)
	assert.False(t, res.Classification.IsPositive)
	assert.Equal(t, dir, filepath.Dir(res.CroppedPath))
	assert.Equal(t, 1, sess.Calls())
}

func TestScanCommand_ThresholdFlag(t *testing.T) {
	useFakeClassifier(t, testutil.NewBinarySession(0.29))
	dir := t.TempDir()
	img := writeLesion(t, dir, "arm.jpg", 200, 200)

	out, err := runCommand(t, scanCmd, map[string]string{
		"threshold": "0.2",
		"crop-dir":  dir,
		"format":    "csv",
	}, img)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Malignant")
}

func TestScanCommand_Errors(t *testing.T) {
	useFakeClassifier(t, testutil.NewBinarySession(0.5))
	dir := t.TempDir()
	img := writeLesion(t, dir, "arm.jpg", 100, 100)

	_, err := runCommand(t, scanCmd, nil)
	assert.EqualError(t, err, "no input files provided")

	_, err = runCommand(t, scanCmd, map[string]string{"threshold": "1.5"}, img)
	assert.Error(t, err)

	_, err = runCommand(t, scanCmd, map[string]string{"crop-dir": dir}, filepath.Join(dir, "nope.jpg"))
	assert.Error(t, err)
}

func TestBatchCommand_ContinuesOnError(t *testing.T) {
	sess := testutil.NewBinarySession(0.8)
	useFakeClassifier(t, sess)
	in := t.TempDir()
	writeLesion(t, in, "a.jpg", 120, 90)
	writeLesion(t, in, "b.jpg", 90, 120)
	require.NoError(t, os.WriteFile(filepath.Join(in, "c.jpg"), []byte("not an image"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip me"), 0o600))
	outFile := filepath.Join(t.TempDir(), "results.csv")

	_, err := runCommand(t, batchCmd, map[string]string{
		"workers":  "2",
		"crop-dir": t.TempDir(),
		"format":   "csv",
		"output":   outFile,
		"quiet":    "true",
	}, in)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "a.jpg")
	assert.Contains(t, lines[1], "Malignant")
	assert.Contains(t, lines[3], "c.jpg")
	assert.Equal(t, 2, sess.Calls())
}

func TestBatchCommand_StopOnError(t *testing.T) {
	useFakeClassifier(t, testutil.NewBinarySession(0.8))
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.jpg"), []byte("not an image"), 0o600))

	_, err := runCommand(t, batchCmd, map[string]string{
		"continue-on-error": "false",
		"crop-dir":          t.TempDir(),
		"quiet":             "true",
	}, in)
	assert.ErrorContains(t, err, "batch processing failed")
}

func TestBatchCommand_EmptyDirectory(t *testing.T) {
	useFakeClassifier(t, testutil.NewBinarySession(0.8))
	_, err := runCommand(t, batchCmd, nil, t.TempDir())
	assert.EqualError(t, err, "no supported images found")
}

func TestConfigCommands(t *testing.T) {
	out, err := runCommand(t, configShowCmd, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "malignant_threshold: 0.3")
	assert.Contains(t, out, "target_box_size: 220")

	target := filepath.Join(t.TempDir(), "dermascan.yaml")
	out, err = runCommand(t, configInitCmd, nil, target)
	require.NoError(t, err)
	assert.Contains(t, out, target)
	assert.FileExists(t, target)

	_, err = runCommand(t, configInitCmd, nil, target)
	assert.Error(t, err)

	_, err = runCommand(t, configInitCmd, map[string]string{"force": "true"}, target)
	assert.NoError(t, err)
}

func TestServeFlagsMapToServerConfig(t *testing.T) {
	t.Cleanup(func() { resetFlags(serveCmd) })
	require.NoError(t, serveCmd.Flags().Set("port", "9090"))
	require.NoError(t, serveCmd.Flags().Set("rate-limit-enabled", "true"))
	require.NoError(t, serveCmd.Flags().Set("max-data-per-day", "5"))
	require.NoError(t, serveCmd.Flags().Set("artifact-ttl", "6"))

	cfg := GetConfig()
	applyServeFlags(cfg, serveCmd)
	sc := toServerConfig(cfg)

	assert.Equal(t, 9090, sc.Port)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, int64(5*1024*1024), sc.RateLimit.MaxDataPerDay)
	assert.Equal(t, "localhost", sc.Host)
	assert.Equal(t, 6*time.Hour, sc.ArtifactTTL)
	assert.Equal(t, 24*time.Hour, sc.ClientIdleTimeout)
	assert.Equal(t, 10*time.Minute, sc.CleanupInterval)
}

func TestPrintExpectedAssets(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	printExpectedAssets(&buf, dir)

	out := buf.String()
	assert.Contains(t, out, filepath.Join(dir, models.TypeClassifier))
	assert.Contains(t, out, models.ClassifierModel)
	assert.Contains(t, out, models.LabelsFile)
}

func TestTestCommand(t *testing.T) {
	assert.Equal(t, "test", testCmd.Use)
	assert.NotEmpty(t, testCmd.Short)

	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", filepath.Join(t.TempDir(), "missing.so"))
	out, err := runCommand(t, testCmd, nil)
	// The runtime may be installed system-wide; either path prints the header.
	assert.Contains(t, out, "Testing ONNX Runtime setup")
	if err != nil {
		t.Logf("test command failed as expected without a runtime: %v", err)
	}
}
