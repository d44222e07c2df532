package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MeKo-Tech/dermascan/internal/benchmark"
	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/scan"
)

func main() {
	var (
		modelsDir  = flag.String("models", "", "Directory containing the classifier model (default: auto)")
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		outputFile = flag.String("output", "", "Output file for results (optional)")
		useGPU     = flag.Bool("gpu", false, "Run inference on CUDA")
		cropOnly   = flag.Bool("crop-only", false, "Skip model loading and benchmark cropping only")
	)
	flag.Parse()

	fmt.Println("dermascan crop and scan benchmark")
	fmt.Println("=================================")

	tmpDir, err := os.MkdirTemp("", "dermascan-bench-*")
	if err != nil {
		log.Fatalf("Failed to create artifact dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	var cls scan.ImageClassifier
	if !*cropOnly {
		cfg := classifier.DefaultConfig()
		cfg.UpdateModelPaths(*modelsDir)
		cfg.GPU.UseGPU = *useGPU
		c, err := classifier.New(cfg)
		if err == nil {
			err = c.Initialize()
		}
		if err != nil {
			fmt.Printf("Model unavailable, benchmarking crops only: %v\n", err)
		} else {
			defer func() { _ = c.Close() }()
			cls = c
		}
	}

	scanCfg := scan.DefaultConfig()
	scanCfg.OutputDir = tmpDir
	scanner, err := scan.New(scanCfg, cls)
	if err != nil {
		log.Fatalf("Failed to create scanner: %v", err)
	}

	bench, err := benchmark.NewScanBenchmark(scanner, benchmark.DefaultSizes)
	if err != nil {
		log.Fatalf("Failed to prepare benchmark: %v", err)
	}

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	results := bench.RunAll(*iterations)

	if err := benchmark.WriteReport(os.Stdout, results); err != nil {
		log.Fatalf("Failed to print results: %v", err)
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func saveResultsToFile(filename string, results []benchmark.Result) error {
	file, err := os.Create(filename) //nolint:gosec // G304: user chosen output path
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return benchmark.WriteReport(file, results)
}
