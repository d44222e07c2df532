package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/utils"
	"golang.org/x/sync/errgroup"
)

// BatchOptions controls ScanFiles.
type BatchOptions struct {
	Workers         int  // <= 0 means runtime.NumCPU()
	ContinueOnError bool // record per-file errors instead of stopping
	Template        Request
}

// BatchItem is the outcome for one input file.
type BatchItem struct {
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchResult aggregates a batch run. Items keep input order.
type BatchResult struct {
	Items      []BatchItem   `json:"items"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Workers    int           `json:"workers"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
}

// Results returns the successful scan results in input order.
func (b *BatchResult) Results() []*Result {
	out := make([]*Result, 0, b.Succeeded)
	for _, it := range b.Items {
		if it.Result != nil {
			out = append(out, it.Result)
		}
	}
	return out
}

// ScanFiles scans each file with a bounded worker pool. Decoding and
// cropping run in parallel; inference stays serialized by the classifier.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string, opts BatchOptions) (*BatchResult, error) {
	return s.runBatch(ctx, paths, opts, func(ctx context.Context, i int) (*Result, error) {
		return s.scanFile(ctx, paths[i], opts.Template)
	})
}

// ScanRequests scans in-memory requests with the same pool as ScanFiles.
// Item paths carry each request's Filename.
func (s *Scanner) ScanRequests(ctx context.Context, reqs []Request, opts BatchOptions) (*BatchResult, error) {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Filename
	}
	return s.runBatch(ctx, names, opts, func(ctx context.Context, i int) (*Result, error) {
		return s.Scan(ctx, reqs[i])
	})
}

func (s *Scanner) runBatch(
	ctx context.Context,
	names []string,
	opts BatchOptions,
	scanOne func(ctx context.Context, i int) (*Result, error),
) (*BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(len(names), 1))

	start := time.Now()
	items := make([]BatchItem, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range names {
		g.Go(func() error {
			items[i].Path = name
			res, err := scanOne(gctx, i)
			if err != nil {
				items[i].Error = err.Error()
				slog.Warn("scan failed", "file", name, "error", err)
				if !opts.ContinueOnError {
					return fmt.Errorf("%s: %w", name, err)
				}
				return nil
			}
			items[i].Result = res
			return nil
		})
	}
	err := g.Wait()

	out := &BatchResult{Items: items, Workers: workers, Duration: time.Since(start)}
	out.DurationMs = out.Duration.Milliseconds()
	for i := range out.Items {
		switch {
		case out.Items[i].Result != nil:
			out.Succeeded++
		case out.Items[i].Error != "":
			out.Failed++
		}
	}
	slog.Info("batch completed",
		"files", len(names), "succeeded", out.Succeeded, "failed", out.Failed,
		"workers", workers, "duration_ms", out.DurationMs)
	return out, err
}

func (s *Scanner) scanFile(ctx context.Context, path string, tmpl Request) (*Result, error) {
	data, err := utils.ReadImageFile(path)
	if err != nil {
		return nil, err
	}
	req := tmpl
	req.Image = data
	req.Filename = filepath.Base(path)
	return s.Scan(ctx, req)
}
