package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/scan"
)

// maxBatchItems caps the number of images in one batch request.
const maxBatchItems = 10

// BatchScanRequest is the JSON body of POST /scan/batch. Image data is base64.
type BatchScanRequest struct {
	Images []BatchImage `json:"images"`
	scanParams
}

// BatchImage is a single image in a batch request. Its own parameters
// override the request-wide ones when set.
type BatchImage struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
	scanParams
}

// BatchScanResponse is the response for batch scans.
type BatchScanResponse struct {
	Success bool              `json:"success"`
	Batch   *scan.BatchResult `json:"batch"`
}

// batchScanHandler scans several uploaded images in one request.
func (s *Server) batchScanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.scanner.Ready() {
		scanRequestsTotal.WithLabelValues("batch", "error").Inc()
		s.writeError(w, classifier.ErrModelNotReady)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	var body BatchScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, uploadError(err, fmt.Sprintf("Failed to parse JSON request: %v", err)))
		return
	}
	if len(body.Images) == 0 {
		s.writeError(w, badRequest("No images provided in batch request"))
		return
	}
	if len(body.Images) > maxBatchItems {
		s.writeError(w, badRequest("Batch size too large (maximum %d items)", maxBatchItems))
		return
	}

	reqs := make([]scan.Request, len(body.Images))
	for i, img := range body.Images {
		if len(img.Data) == 0 {
			s.writeError(w, badRequest("image %d has no data", i))
			return
		}
		req, err := mergeParams(body.scanParams, img.scanParams).toRequest(img.Data, img.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if req.Filename == "" {
			req.Filename = fmt.Sprintf("image-%d", i+1)
		}
		reqs[i] = req
		uploadSizeBytes.Observe(float64(len(img.Data)))
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout*time.Duration(len(reqs)))
	defer cancel()

	start := time.Now()
	res, err := s.scanner.ScanRequests(ctx, reqs, scan.BatchOptions{ContinueOnError: true})
	if err != nil {
		scanRequestsTotal.WithLabelValues("batch", "error").Inc()
		s.writeError(w, err)
		return
	}
	scanRequestsTotal.WithLabelValues("batch", "success").Inc()
	scanProcessingDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	for _, item := range res.Results() {
		observeClassification(item)
	}

	writeJSON(w, http.StatusOK, BatchScanResponse{Success: res.Failed == 0, Batch: res})
}

// mergeParams returns base with every field set in override replaced.
func mergeParams(base, override scanParams) scanParams {
	out := base
	if override.Mode != "" {
		out.Mode = override.Mode
	}
	if override.Rect != "" {
		out.Rect = override.Rect
	}
	if override.Box != 0 {
		out.Box = override.Box
	}
	if override.PreviewWidth != 0 || override.PreviewHeight != 0 {
		out.PreviewWidth = override.PreviewWidth
		out.PreviewHeight = override.PreviewHeight
	}
	return out
}
