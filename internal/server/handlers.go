package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/mempool"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/utils"
)

const (
	formatJSON = "json"

	cropRectHeader = "X-Crop-Rect"
)

// requestError is a client mistake detected before scanning.
type requestError struct {
	status int
	kind   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, kind: "invalid_request", msg: fmt.Sprintf(format, args...)}
}

// scanParams are the optional crop parameters shared by HTTP and WebSocket requests.
type scanParams struct {
	Mode          string  `json:"mode,omitempty"`
	Rect          string  `json:"rect,omitempty"`
	Box           float64 `json:"box,omitempty"`
	PreviewWidth  float64 `json:"preview_width,omitempty"`
	PreviewHeight float64 `json:"preview_height,omitempty"`
}

func (p scanParams) toRequest(data []byte, filename string) (scan.Request, error) {
	req := scan.Request{
		Image:    data,
		Filename: filename,
		Viewport: geometry.Viewport{Width: p.PreviewWidth, Height: p.PreviewHeight},
		BoxSize:  p.Box,
	}
	if !finite(p.Box) || !finite(p.PreviewWidth) || !finite(p.PreviewHeight) {
		return req, badRequest("box, preview_width and preview_height must be finite numbers")
	}
	if p.PreviewWidth < 0 || p.PreviewHeight < 0 || (p.PreviewWidth == 0) != (p.PreviewHeight == 0) {
		return req, badRequest("preview_width and preview_height must both be positive or both omitted")
	}
	if p.Box < 0 {
		return req, badRequest("box must be positive")
	}
	if p.Mode != "" {
		mode, err := geometry.ParseMode(p.Mode)
		if err != nil {
			return req, badRequest("%v", err)
		}
		req.Mode = mode
	}
	if p.Rect != "" {
		sel, err := geometry.ParseSelection(p.Rect)
		if err != nil {
			return req, badRequest("%v", err)
		}
		req.Selection = &sel
	}
	return req, nil
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if !s.started.IsZero() {
		response.UptimeSec = time.Since(s.started).Seconds()
	}
	writeJSON(w, http.StatusOK, response)
}

// readyHandler reports whether full scans can be served.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.model == nil || !s.model.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Ready: false, Reason: classifier.ErrModelNotReady.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Ready: true})
}

// modelHandler returns information about the loaded classifier.
func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.model == nil {
		s.writeError(w, classifier.ErrModelNotReady)
		return
	}
	writeJSON(w, http.StatusOK, s.model.Info())
}

// scanHandler crops and classifies an uploaded image.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Fail fast before reading the upload.
	if !s.scanner.Ready() {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeError(w, classifier.ErrModelNotReady)
		return
	}

	req, err := s.parseScanRequest(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeError(w, err)
		return
	}

	format := strings.ToLower(requestFormat(r))
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != "text" && format != "csv" {
		s.writeError(w, badRequest("unsupported format: %s (must be one of: json, text, csv)", format))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.scanner.Scan(ctx, req)
	duration := time.Since(start)
	if err != nil {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeError(w, err)
		return
	}
	scanRequestsTotal.WithLabelValues("scan", "success").Inc()
	scanProcessingDuration.WithLabelValues("scan").Observe(duration.Seconds())
	observeClassification(res)

	switch format {
	case "text", "csv":
		out, err := scan.Format(res, format)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		_, _ = io.WriteString(w, out)
	default:
		writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: res})
	}
}

// cropHandler returns the crop artifact for an uploaded image without classifying it.
func (s *Server) cropHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseScanRequest(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("crop", "error").Inc()
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.scanner.Crop(ctx, req)
	if err != nil {
		scanRequestsTotal.WithLabelValues("crop", "error").Inc()
		s.writeError(w, err)
		return
	}
	scanRequestsTotal.WithLabelValues("crop", "success").Inc()
	scanProcessingDuration.WithLabelValues("crop").Observe(time.Since(start).Seconds())

	w.Header().Set(cropRectHeader, res.Rect.String())
	if strings.ToLower(requestFormat(r)) == formatJSON {
		writeJSON(w, http.StatusOK, res)
		return
	}

	cfg := s.scanner.Config()
	buf := mempool.GetBuffer()
	defer mempool.PutBuffer(buf)
	if err := utils.EncodeImage(buf, res.Image, cfg.Format, cfg.Quality); err != nil {
		s.writeError(w, fmt.Errorf("encode crop: %w", err))
		return
	}
	w.Header().Set("Content-Type", cfg.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Crop response write failed", "error", err)
	}
}

// parseScanRequest reads the image upload and crop parameters. It accepts
// multipart forms with an "image" file and raw image bodies with query
// parameters.
func (s *Server) parseScanRequest(w http.ResponseWriter, r *http.Request) (scan.Request, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var (
		data     []byte
		filename string
		get      func(string) string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(limit); err != nil {
			return scan.Request{}, uploadError(err, "Failed to parse form data")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return scan.Request{}, badRequest("No image file provided")
		}
		defer func() { _ = file.Close() }()

		data, err = io.ReadAll(file)
		if err != nil {
			return scan.Request{}, uploadError(err, "Failed to read image data")
		}
		filename = header.Filename
		get = r.FormValue
	} else {
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			return scan.Request{}, uploadError(err, "Failed to read image data")
		}
		filename = r.URL.Query().Get("filename")
		get = r.URL.Query().Get
	}

	if len(data) == 0 {
		return scan.Request{}, badRequest("No image data provided")
	}
	uploadSizeBytes.Observe(float64(len(data)))

	var p scanParams
	p.Mode = get("mode")
	p.Rect = get("rect")
	var err error
	if p.Box, err = parseFloatParam(get, "box"); err != nil {
		return scan.Request{}, err
	}
	if p.PreviewWidth, err = parseFloatParam(get, "preview_width"); err != nil {
		return scan.Request{}, err
	}
	if p.PreviewHeight, err = parseFloatParam(get, "preview_height"); err != nil {
		return scan.Request{}, err
	}
	return p.toRequest(data, filename)
}

func parseFloatParam(get func(string) string, name string) (float64, error) {
	raw := strings.TrimSpace(get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, badRequest("invalid %s: %q", name, raw)
	}
	return v, nil
}

func uploadError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{status: http.StatusRequestEntityTooLarge, kind: "too_large", msg: "File too large"}
	}
	return badRequest("%s", msg)
}

// requestFormat reads 'format' from the form or the query string.
func requestFormat(r *http.Request) string {
	if f := r.FormValue("format"); f != "" {
		return f
	}
	return r.URL.Query().Get("format")
}

// errorStatus maps scan errors to an HTTP status and an error type.
func errorStatus(err error) (int, string) {
	var reqErr *requestError
	var decErr *classifier.DecodeError
	var geoErr *geometry.GeometryError
	var infErr *classifier.InferenceError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.kind
	case errors.Is(err, classifier.ErrModelNotReady):
		return http.StatusServiceUnavailable, "model_not_ready"
	case errors.As(err, &decErr):
		return http.StatusBadRequest, "decode_error"
	case errors.As(err, &geoErr), errors.Is(err, scan.ErrSelectionRequired):
		return http.StatusBadRequest, "invalid_selection"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	case errors.As(err, &infErr):
		return http.StatusInternalServerError, "inference_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes a JSON error response for err.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "error_type", kind)
	}
	writeJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: kind,
		Retryable: true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func observeClassification(res *scan.Result) {
	if res == nil || res.Classification == nil {
		return
	}
	c := res.Classification
	classificationsTotal.WithLabelValues(c.Label, strconv.FormatBool(c.IsPositive)).Inc()
	classificationConfidence.Observe(c.Confidence)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
