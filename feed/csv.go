package feed

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/surgekit/surge"
)

// CSV builds a feeder from a CSV file. The first row is treated as headers;
// each subsequent row becomes one attribute map keyed by header. The whole
// file is read at construction so that per-iteration access is lock-cheap
// and the file handle is not held for the run's lifetime.
func CSV(path string, order Order) (surge.Feeder, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: read %s: %w", path, err)
	}
	rows, err := parseCSV(content)
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, &surge.ErrConfig{Field: "feeder", Message: fmt.Sprintf("%s has no data rows", path)}
	}
	name := filepath.Base(path)
	return &rowFeeder{name: name, order: order, rows: rows}, nil
}

// parseCSV converts CSV content into attribute rows. A BOM is stripped if
// present.
func parseCSV(content []byte) ([]map[string]any, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read headers: %w", err)
	}

	var rows []map[string]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
