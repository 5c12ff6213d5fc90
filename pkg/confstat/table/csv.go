package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ReadCSV parses a delimited file whose first record is the header.
// Cells are kept verbatim so strings, integers and serialized lists
// round-trip losslessly.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil)
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	t, err := New(headers)
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		if err := t.Append(record); err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
	}
	return t, nil
}

// WriteCSV writes t with a header record.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
