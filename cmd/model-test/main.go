package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/MeKo-Tech/dermascan/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	modelsDir := flag.String("models", "", "Directory containing the classifier model (default: auto)")
	modelPath := flag.String("model", "", "Explicit model path (overrides -models)")
	flag.Parse()

	if err := onnx.EnsureEnvironment(false); err != nil {
		slog.Error("Failed to initialize ONNX Runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := onnx.ShutdownEnvironment(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", "error", err)
		}
	}()

	path := *modelPath
	if path == "" {
		path = models.GetClassifierModelPath(*modelsDir)
	}

	fmt.Println("Inspecting lesion classifier...")
	fmt.Println("===============================")

	if err := models.ValidateModelExists(path); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		fmt.Printf("❌ %s: Failed to get model info - %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("✅ %s: Compatible with ONNX Runtime\n", path)
	fmt.Printf("   - Inputs: %d\n", len(inputs))
	for i, input := range inputs {
		fmt.Printf("     [%d] %s: %v (type: %s)\n", i, input.Name, input.Dimensions, input.DataType)
	}
	fmt.Printf("   - Outputs: %d\n", len(outputs))
	for i, output := range outputs {
		fmt.Printf("     [%d] %s: %v (type: %s)\n", i, output.Name, output.Dimensions, output.DataType)
	}
	if len(inputs) == 1 {
		if err := onnx.ValidateNHWC(inputs[0].Dimensions); err != nil {
			fmt.Printf("   ⚠ input is not NHWC: %v\n", err)
		}
	}

	metadata, err := onnxruntime_go.GetModelMetadata(path)
	if err == nil {
		if producer, err := metadata.GetProducerName(); err == nil && producer != "" {
			fmt.Printf("   - Producer: %s\n", producer)
		}
		if version, err := metadata.GetVersion(); err == nil {
			fmt.Printf("   - Version: %d\n", version)
		}
		if err := metadata.Destroy(); err != nil {
			slog.Error("Failed to destroy model metadata", "error", err)
		}
	}

	labelsPath := models.GetLabelsPath(*modelsDir)
	if labels, err := models.LoadLabels(labelsPath); err == nil {
		fmt.Printf("   - Labels (%s): %v\n", labelsPath, labels)
	} else {
		fmt.Printf("   - Labels: none (%v)\n", err)
	}
}
