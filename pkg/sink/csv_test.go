package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cityscope/sodafetch/pkg/soda"
	"github.com/rs/zerolog"
)

func newTestSink(t *testing.T) *CSVSink {
	t.Helper()

	s := NewCSVSink(t.TempDir(), "nyc_property_sales", zerolog.Nop())
	s.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return s
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWrite_BothPaths(t *testing.T) {
	s := newTestSink(t)

	records := []soda.Record{
		{"sale_date": "2020-01-02", "sale_price": "900000", "borough": "1"},
		{"sale_date": "2020-01-01", "sale_price": "450000", "borough": "3"},
	}

	result, err := s.Write(records, "2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	wantArchive := filepath.Join(s.Dir, "nyc_property_sales_2020-01-01_2020-01-02_20240315_103000.csv")
	if result.ArchivePath != wantArchive {
		t.Errorf("ArchivePath = %q, want %q", result.ArchivePath, wantArchive)
	}
	wantCanonical := filepath.Join(s.Dir, "nyc_property_sales.csv")
	if result.CanonicalPath != wantCanonical {
		t.Errorf("CanonicalPath = %q, want %q", result.CanonicalPath, wantCanonical)
	}

	for _, path := range []string{result.ArchivePath, result.CanonicalPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output file missing: %v", err)
		}
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	s := newTestSink(t)

	records := []soda.Record{
		{"sale_date": "2020-01-02", "sale_price": "900000", "borough": "1"},
		{"sale_date": "2020-01-01", "sale_price": "450000", "borough": "3"},
		{"sale_date": "2020-01-01", "sale_price": "725000", "borough": "4"},
	}

	result, err := s.Write(records, "2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	rows := readCSV(t, result.CanonicalPath)

	// Header reproduces the in-memory field-name set, sorted.
	wantHeader := []string{"borough", "sale_date", "sale_price"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}

	// Row count matches the accumulation.
	if len(rows)-1 != len(records) {
		t.Errorf("got %d data rows, want %d", len(rows)-1, len(records))
	}

	// Server order is preserved.
	if rows[1][2] != "900000" || rows[3][2] != "725000" {
		t.Errorf("rows out of order: %v", rows[1:])
	}
}

func TestWrite_RaggedRecords(t *testing.T) {
	s := newTestSink(t)

	// Socrata omits fields with no value; absent fields become empty cells.
	records := []soda.Record{
		{"sale_date": "2020-01-02", "sale_price": "900000"},
		{"sale_date": "2020-01-01", "block": "1024"},
	}

	result, err := s.Write(records, "2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	rows := readCSV(t, result.CanonicalPath)

	wantHeader := []string{"block", "sale_date", "sale_price"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("header = %v, want %v", rows[0], wantHeader)
	}
	if !reflect.DeepEqual(rows[1], []string{"", "2020-01-02", "900000"}) {
		t.Errorf("row 1 = %v", rows[1])
	}
	if !reflect.DeepEqual(rows[2], []string{"1024", "2020-01-01", ""}) {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestWrite_EmptyRecords(t *testing.T) {
	s := newTestSink(t)

	result, err := s.Write(nil, "2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Rows != 0 {
		t.Errorf("Rows = %d, want 0", result.Rows)
	}

	// Files exist even for an empty result set.
	if _, err := os.Stat(result.CanonicalPath); err != nil {
		t.Errorf("canonical file missing: %v", err)
	}
}

func TestWrite_CreatesDir(t *testing.T) {
	base := t.TempDir()
	s := NewCSVSink(filepath.Join(base, "data", "raw"), "nyc_property_sales", zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

	if _, err := s.Write([]soda.Record{{"a": "1"}}, "2020-01-01", "2020-01-02"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestNewCSVSink_Defaults(t *testing.T) {
	s := NewCSVSink("", "", zerolog.Nop())
	if s.Dir != DefaultDir {
		t.Errorf("Dir = %q, want %q", s.Dir, DefaultDir)
	}
	if s.Basename != DefaultBasename {
		t.Errorf("Basename = %q, want %q", s.Basename, DefaultBasename)
	}
}
