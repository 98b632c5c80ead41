package helpers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// WriteCSV renders rows as comma separated UTF-8 text. Fields containing a
// comma, quote or newline are quoted with inner quotes doubled.
func WriteCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("error writing csv: %w", err)
	}
	return buf.String(), nil
}

// ReadCSV parses CSV text, the inverse of WriteCSV. Rows may have differing
// field counts. A leading UTF-8 byte order mark is ignored.
func ReadCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading csv: %w", err)
	}
	return rows, nil
}

// CSVToMaps turns CSV text with a header line into one map per data row.
func CSVToMaps(text string) ([]map[string]string, error) {
	rows, err := ReadCSV(text)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				m[name] = row[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
