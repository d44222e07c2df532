// Package benchmark measures crop and scan throughput on synthetic lesion photos.
package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/disintegration/imaging"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	SysBytes        uint64
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB returns the cumulative allocation during the run.
func (r Result) AllocatedKB() uint64 {
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

type entry struct {
	name string
	fn   func() error
}

// Suite runs named benchmark functions.
type Suite struct {
	entries []entry
	results []Result
	mu      sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers a benchmark.
func (s *Suite) Add(name string, fn func() error) {
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

// Run runs a single benchmark by name.
func (s *Suite) Run(name string, iterations int) Result {
	for _, e := range s.entries {
		if e.name == name {
			return runEntry(e, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every registered benchmark in order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		s.results = append(s.results, runEntry(e, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runEntry(e entry, iterations int) Result {
	runtime.GC()
	before := GetMemoryStats()

	timer := NewTimer(e.name)
	var err error
	done := 0
	for range iterations {
		if err = e.fn(); err != nil {
			break
		}
		done++
	}
	duration := timer.Stop()

	return Result{
		Name:         e.name,
		Duration:     duration,
		MemoryBefore: before,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}

// DefaultSizes are the photo sizes a scan benchmark covers.
var DefaultSizes = []testutil.ImageSize{
	testutil.SmallSize,
	testutil.PortraitSize,
	testutil.LandscapeSize,
}

// PhonePreview is the portrait viewport the benchmarks select on.
var PhonePreview = geometry.Viewport{Width: 390, Height: 520}

// ScanBenchmark registers crop and, when a model is loaded, scan benchmarks
// for every size.
type ScanBenchmark struct {
	*Suite
	scanner *scan.Scanner
}

// NewScanBenchmark prepares one synthetic photo per size.
func NewScanBenchmark(scanner *scan.Scanner, sizes []testutil.ImageSize) (*ScanBenchmark, error) {
	if scanner == nil {
		return nil, errors.New("benchmark: scanner is required")
	}
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}

	b := &ScanBenchmark{Suite: NewSuite(), scanner: scanner}
	for _, size := range sizes {
		cfg := testutil.DefaultLesionConfig()
		cfg.Size = size
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, testutil.GenerateLesionImage(cfg), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return nil, fmt.Errorf("benchmark: encode %dx%d: %w", size.Width, size.Height, err)
		}
		b.addSize(size, buf.Bytes())
	}
	return b, nil
}

func (b *ScanBenchmark) addSize(size testutil.ImageSize, data []byte) {
	ctx := context.Background()
	label := fmt.Sprintf("%dx%d", size.Width, size.Height)
	req := scan.Request{Image: data, Filename: "bench-" + label + ".jpg", Viewport: PhonePreview}

	b.Add("Crop_"+label, func() error {
		_, err := b.scanner.Crop(ctx, req)
		return err
	})
	if b.scanner.Ready() {
		b.Add("Scan_"+label, func() error {
			_, err := b.scanner.Scan(ctx, req)
			return err
		})
	}
}

// WriteReport prints results as a table followed by CSV rows.
func WriteReport(w io.Writer, results []Result) error {
	var buf bytes.Buffer
	buf.WriteString("dermascan benchmark results\n")
	buf.WriteString("===========================\n")
	for _, r := range results {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	buf.WriteString("\nname,iterations,avg_ms,total_ms,alloc_kb,error\n")
	for _, r := range results {
		errMsg := ""
		if r.Error != nil {
			errMsg = r.Error.Error()
		}
		fmt.Fprintf(&buf, "%s,%d,%.2f,%.2f,%d,%q\n",
			r.Name, r.Iterations,
			float64(r.Average().Microseconds())/1000,
			float64(r.Duration.Microseconds())/1000,
			r.AllocatedKB(), errMsg)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
