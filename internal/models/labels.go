package models

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadLabels reads a label list: one label per line, trimmed, blank lines
// ignored. Order is preserved since it maps output indices to labels.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: configured asset path
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer func() { _ = f.Close() }()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	return labels, nil
}

// ParseLabels parses labels from r.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}
