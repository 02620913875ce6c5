// Package training turns a labeled message dataset into a saved model
// artifact: load, optional augmentation, stratified holdout, fit, evaluate,
// save. Activation stays a separate step.
package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// NormalizeLabel maps raw dataset labels onto the binary target. The mapping
// is total: any spelling of the positive class maps to 1, everything else,
// including garbage, maps to 0.
func NormalizeLabel(raw string) int {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "spam", "1", "true", "yes", "s":
		return 1
	default:
		return 0
	}
}

// LoadDataset reads a label/text dataset. Comma-separated with a header row
// is the primary format; files that do not parse as CSV fall back to
// tab-separated label<TAB>text lines without a header.
func LoadDataset(path string) ([]string, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	texts, labels, err := readCSV(f)
	if err == nil && len(texts) > 0 {
		return texts, labels, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("rewind dataset: %w", err)
	}
	return readTSV(f)
}

func readCSV(r io.Reader) ([]string, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("dataset has no data rows")
	}

	labelCol, textCol := headerColumns(rows[0])
	if labelCol < 0 || textCol < 0 {
		return nil, nil, fmt.Errorf("dataset header lacks label/text columns")
	}

	var texts []string
	var labels []int
	for _, row := range rows[1:] {
		if len(row) <= labelCol || len(row) <= textCol {
			continue
		}
		text := strings.TrimSpace(row[textCol])
		if text == "" {
			continue
		}
		texts = append(texts, text)
		labels = append(labels, NormalizeLabel(row[labelCol]))
	}
	if len(texts) == 0 {
		return nil, nil, fmt.Errorf("dataset has no usable rows")
	}
	return texts, labels, nil
}

// headerColumns locates the label and text columns by common header names.
func headerColumns(header []string) (labelCol, textCol int) {
	labelCol, textCol = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "label", "class", "target", "v1":
			if labelCol < 0 {
				labelCol = i
			}
		case "text", "message", "sms", "body", "v2":
			if textCol < 0 {
				textCol = i
			}
		}
	}
	return labelCol, textCol
}

func readTSV(r io.Reader) ([]string, []int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read dataset: %w", err)
	}

	var texts []string
	var labels []int
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		label, text, found := strings.Cut(line, "\t")
		if !found || strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, strings.TrimSpace(text))
		labels = append(labels, NormalizeLabel(label))
	}
	if len(texts) == 0 {
		return nil, nil, fmt.Errorf("dataset has no usable rows")
	}
	return texts, labels, nil
}
