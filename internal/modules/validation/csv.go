package validation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV loads a broker positions export. The header is validated before any
// row is read. Blank lines and the single-cell disclaimer lines brokers append
// after the positions are dropped.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read header: empty input")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if err := ValidateColumns(header); err != nil {
		return nil, err
	}

	var rows []Row
	for index := 0; ; {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", index, err)
		}
		if footerLine(record) {
			continue
		}

		cells := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(record) {
				cells[col] = strings.TrimSpace(record[i])
			} else {
				cells[col] = ""
			}
		}
		rows = append(rows, NewRow(index, cells))
		index++
	}
	return rows, nil
}

func footerLine(record []string) bool {
	nonEmpty := 0
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			nonEmpty++
		}
	}
	return nonEmpty <= 1
}

// RowsFromMaps wraps column maps (as received over HTTP) into indexed rows.
func RowsFromMaps(maps []map[string]string) []Row {
	rows := make([]Row, len(maps))
	for i, m := range maps {
		rows[i] = NewRow(i, m)
	}
	return rows
}
