// Package ingest turns uploaded CSV files into rows for the validation engine.
//
// The first non-empty record is the header. Every later record becomes one
// row keyed by header name. Cells are cleaned of spreadsheet artifacts and
// blank cells become null values, so "required field is empty" checks behave
// the same for JSON and CSV input.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/dataquality/internal/quality"
)

var (
	// ErrEmptyFile is returned when the input has no header record.
	ErrEmptyFile = errors.New("empty file")

	// ErrInvalidHeader is returned for blank or repeated column names.
	ErrInvalidHeader = errors.New("invalid csv header")

	// ErrTooManyRows is returned when the file holds more data rows than allowed.
	ErrTooManyRows = errors.New("too many rows")
)

// Options controls CSV parsing.
type Options struct {
	// Comma is the field delimiter (default ',').
	Comma rune

	// MaxRows caps the number of data rows; 0 means unlimited.
	MaxRows int
}

// Table is a parsed CSV file.
type Table struct {
	Header []string
	Rows   []quality.Row

	// BytesRead is the number of bytes consumed after BOM removal.
	BytesRead int64
}

// ReadCSV parses r into a Table.
//
// Records shorter than the header are padded with nulls. Records longer than
// the header are rejected, since the extra cells cannot be named.
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	src := Wrap(r)

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	var header []string
	rows := make([]quality.Row, 0)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if blankRecord(record) {
			continue
		}

		if header == nil {
			header, err = parseHeader(record)
			if err != nil {
				return nil, err
			}
			continue
		}

		line, _ := cr.FieldPos(0)
		if len(record) > len(header) {
			return nil, fmt.Errorf("invalid csv: line %d has %d fields, header has %d",
				line, len(record), len(header))
		}
		if opts.MaxRows > 0 && len(rows) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}

		row := make(quality.Row, len(header))
		for i, name := range header {
			if i >= len(record) {
				row[name] = quality.Null()
				continue
			}
			row[name] = cellValue(record[i])
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, ErrEmptyFile
	}

	return &Table{Header: header, Rows: rows, BytesRead: src.BytesRead}, nil
}

// parseHeader cleans column names and rejects blanks and case-insensitive repeats.
func parseHeader(record []string) ([]string, error) {
	header := make([]string, len(record))
	seen := make(map[string]int, len(record))

	for i, cell := range record {
		name := CleanCell(cell)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidHeader, i+1)
		}
		key := strings.ToLower(name)
		if first, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: column %q repeats column %d", ErrInvalidHeader, name, first+1)
		}
		seen[key] = i
		header[i] = name
	}
	return header, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cellValue converts a raw cell into a value. Cells stay text; the engine's
// operators parse numbers and dates from the string form themselves.
func cellValue(cell string) quality.Value {
	cell = CleanCell(cell)
	if cell == "" {
		return quality.Null()
	}
	return quality.Text(cell)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - Surrounding whitespace
//   - Excel formula wrapping (="..." or a leading =)
//   - Surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
