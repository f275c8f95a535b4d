package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// Table is a CSV file held in memory: a header row and data rows of equal
// width.
type Table struct {
	Header []string
	Rows   [][]string
	// Encoding is the encoding the file was decoded from ("utf-8" or "latin-1").
	Encoding string
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.Header) }

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Header:   append([]string(nil), t.Header...),
		Rows:     make([][]string, len(t.Rows)),
		Encoding: t.Encoding,
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV loads a CSV file. Input that is not valid UTF-8 is decoded once
// more as latin-1 before giving up.
func ReadCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pii.NewPathError(pii.KindFileRead, "read_csv", path, err)
	}
	table, err := ParseCSV(data)
	if err != nil {
		return nil, pii.NewPathError(pii.KindFileRead, "read_csv", path, err)
	}
	return table, nil
}

// ParseCSV parses CSV bytes, falling back to latin-1 on invalid UTF-8.
func ParseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	encoding := "utf-8"
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
		data = decoded
		encoding = "latin-1"
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	return &Table{
		Header:   records[0],
		Rows:     records[1:],
		Encoding: encoding,
	}, nil
}

// WriteCSV writes the header and rows as UTF-8 CSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
