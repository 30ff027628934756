// Package sink persists fetched records for downstream pipeline stages.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cityscope/sodafetch/pkg/soda"
	"github.com/rs/zerolog"
)

// WriteResult describes the files produced by one write.
type WriteResult struct {
	// ArchivePath is the timestamped copy.
	ArchivePath string

	// CanonicalPath is the fixed-name copy the downstream pipeline reads.
	CanonicalPath string

	// Rows is the number of data rows written (excluding the header).
	Rows int

	// Columns is the header written to both files.
	Columns []string
}

// Sink consumes the accumulated records of one fetch run.
type Sink interface {
	// Write persists records tagged with the given date range and returns
	// where they landed.
	Write(records []soda.Record, start, end string) (*WriteResult, error)
}

// CSVSink writes records as delimited files: a timestamped archival copy
// plus a canonical fixed-name copy so downstream stages always have a
// stable path to read.
type CSVSink struct {
	// Dir is the output directory, created if absent.
	Dir string

	// Basename names the canonical file ("{Basename}.csv") and prefixes
	// the archival one.
	Basename string

	logger zerolog.Logger
	now    func() time.Time
}

// DefaultDir matches the raw-data directory the downstream pipeline expects.
const DefaultDir = "data/raw"

// DefaultBasename is the canonical output name for NYC property sales.
const DefaultBasename = "nyc_property_sales"

// NewCSVSink creates a CSV sink writing under dir.
func NewCSVSink(dir, basename string, logger zerolog.Logger) *CSVSink {
	if dir == "" {
		dir = DefaultDir
	}
	if basename == "" {
		basename = DefaultBasename
	}
	return &CSVSink{
		Dir:      dir,
		Basename: basename,
		logger:   logger,
		now:      time.Now,
	}
}

// Write persists records to both output paths.
//
// The header is the sorted union of field names across all records; rows
// missing a field get an empty cell. The schema is whatever the server
// sent, never validated here.
func (s *CSVSink) Write(records []soda.Record, start, end string) (*WriteResult, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	columns := columnUnion(records)

	timestamp := s.now().Format("20060102_150405")
	archiveName := fmt.Sprintf("%s_%s_%s_%s.csv", s.Basename, start, end, timestamp)
	archivePath := filepath.Join(s.Dir, archiveName)
	canonicalPath := filepath.Join(s.Dir, s.Basename+".csv")

	for _, path := range []string{archivePath, canonicalPath} {
		if err := writeCSV(path, columns, records); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("archive", archivePath).
		Str("canonical", canonicalPath).
		Int("rows", len(records)).
		Int("columns", len(columns)).
		Msg("Records saved")

	return &WriteResult{
		ArchivePath:   archivePath,
		CanonicalPath: canonicalPath,
		Rows:          len(records),
		Columns:       columns,
	}, nil
}

// columnUnion returns the sorted union of field names across records.
func columnUnion(records []soda.Record) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for field := range record {
			seen[field] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for field := range seen {
		columns = append(columns, field)
	}
	sort.Strings(columns)
	return columns
}

// writeCSV writes one header row plus one row per record.
func writeCSV(path string, columns []string, records []soda.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			row[i] = record[column]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	return file.Close()
}
