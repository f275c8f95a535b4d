package extract

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

func TestParseCSV_UTF8(t *testing.T) {
	data := []byte("\xEF\xBB\xBFname,email\nZoë,zoe@example.com\nBob,\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if table.Encoding != "utf-8" {
		t.Errorf("Expected utf-8, got %s", table.Encoding)
	}
	if table.Header[0] != "name" {
		t.Errorf("Expected BOM stripped from header, got %q", table.Header[0])
	}
	if table.NumRows() != 2 || table.NumColumns() != 2 {
		t.Errorf("Expected 2x2 table, got %dx%d", table.NumRows(), table.NumColumns())
	}
	if table.Rows[0][0] != "Zoë" {
		t.Errorf("Expected 'Zoë', got %q", table.Rows[0][0])
	}
}

func TestParseCSV_Latin1Fallback(t *testing.T) {
	// "Zoë" in latin-1 is not valid UTF-8
	data := []byte("name\nZo\xEB\n")

	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if table.Encoding != "latin-1" {
		t.Errorf("Expected latin-1, got %s", table.Encoding)
	}
	if table.Rows[0][0] != "Zoë" {
		t.Errorf("Expected 'Zoë', got %q", table.Rows[0][0])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	ragged := filepath.Join(dir, "ragged.csv")
	if err := os.WriteFile(ragged, []byte("a,b\n1,2,3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{ragged, empty, filepath.Join(dir, "missing.csv")} {
		if _, err := ReadCSV(path); !errors.Is(err, pii.ErrFileRead) {
			t.Errorf("%s: expected ErrFileRead, got %v", filepath.Base(path), err)
		}
	}
}

func TestWriteCSV_PreservesOrder(t *testing.T) {
	table := &Table{
		Header: []string{"z", "a", "m"},
		Rows:   [][]string{{"1", "two, three", ""}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := "z,a,m\n1,\"two, three\",\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestTable_Clone(t *testing.T) {
	table := &Table{Header: []string{"a"}, Rows: [][]string{{"x"}}}
	c := table.Clone()
	c.Rows[0][0] = "y"
	c.Header[0] = "b"

	if table.Rows[0][0] != "x" || table.Header[0] != "a" {
		t.Error("Expected clone to be independent of the original")
	}
}
