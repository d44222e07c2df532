package scan

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ToJSON serializes a single Result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONBatch serializes a batch run to pretty JSON.
func ToJSONBatch(b *BatchResult) (string, error) {
	if b == nil {
		return "", errors.New("nil batch result")
	}
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ToText renders a short human readable summary.
func ToText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	if res.Filename != "" {
		fmt.Fprintf(&sb, "File:        %s\n", res.Filename)
	}
	fmt.Fprintf(&sb, "Scan ID:     %s\n", res.ID)
	fmt.Fprintf(&sb, "Source:      %dx%d\n", res.Source.Width, res.Source.Height)
	fmt.Fprintf(&sb, "Crop:        %s (%s)\n", res.Crop, res.Mode)
	if c := res.Classification; c != nil {
		fmt.Fprintf(&sb, "Result:      %s (%.1f%%)\n", c.Label, c.Confidence*100)
		if c.IsPositive {
			sb.WriteString("Attention:   please consult a dermatologist\n")
		}
		fmt.Fprintf(&sb, "Description: %s\n", c.Description)
	}
	if res.CroppedPath != "" {
		fmt.Fprintf(&sb, "Cropped:     %s\n", res.CroppedPath)
	}
	return sb.String(), nil
}

// ToTextBatch renders one summary per file followed by totals.
func ToTextBatch(b *BatchResult) (string, error) {
	if b == nil {
		return "", errors.New("nil batch result")
	}
	var sb strings.Builder
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "== %s\n", it.Path)
		if it.Result == nil {
			fmt.Fprintf(&sb, "Error:       %s\n\n", it.Error)
			continue
		}
		txt, err := ToText(it.Result)
		if err != nil {
			return "", err
		}
		sb.WriteString(txt)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Processed %d files: %d succeeded, %d failed in %dms\n",
		len(b.Items), b.Succeeded, b.Failed, b.DurationMs)
	return sb.String(), nil
}

var csvHeader = []string{
	"file", "id", "x", "y", "w", "h", "label", "confidence", "is_positive", "cropped_path", "error",
}

func csvRow(file string, res *Result, errMsg string) []string {
	if res == nil {
		return []string{file, "", "", "", "", "", "", "", "", "", errMsg}
	}
	row := []string{
		file,
		res.ID,
		strconv.Itoa(res.Crop.X),
		strconv.Itoa(res.Crop.Y),
		strconv.Itoa(res.Crop.Width),
		strconv.Itoa(res.Crop.Height),
		"", "", "",
		res.CroppedPath,
		errMsg,
	}
	if c := res.Classification; c != nil {
		row[6] = c.Label
		row[7] = fmt.Sprintf("%.4f", c.Confidence)
		row[8] = strconv.FormatBool(c.IsPositive)
	}
	return row
}

// ToCSV exports results as CSV with a header row.
func ToCSV(results ...*Result) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, r := range results {
		if r == nil {
			continue
		}
		_ = w.Write(csvRow(r.Filename, r, ""))
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToCSVBatch exports a batch including failed files.
func ToCSVBatch(b *BatchResult) (string, error) {
	if b == nil {
		return "", errors.New("nil batch result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, it := range b.Items {
		_ = w.Write(csvRow(it.Path, it.Result, it.Error))
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders res as json, text or csv.
func Format(res *Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return ToJSON(res)
	case "text":
		return ToText(res)
	case "csv":
		return ToCSV(res)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatBatch renders b as json, text or csv.
func FormatBatch(b *BatchResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return ToJSONBatch(b)
	case "text":
		return ToTextBatch(b)
	case "csv":
		return ToCSVBatch(b)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
