// Package sink writes dataset rows to CSV files and SQLite databases.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Header is the CSV column layout.
var Header = []string{
	"Project", "MethodName", "Release", "LOC", "CyclomaticComplexity", "ParameterCount", "Duplication",
	"NR", "NAuth", "stmtAdded", "stmtDeleted", "maxChurn", "avgChurn", "IsBuggy",
}

// CSV writes rows as comma-separated values with a header line.
type CSV struct {
	w       *csv.Writer
	closer  io.Closer
	started bool
}

// NewCSV writes to w. Close flushes but does not close w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// CreateCSV creates or truncates the file at path.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}

	s := NewCSV(f)
	s.closer = f

	return s, nil
}

// WriteRelease appends the rows of one release.
func (s *CSV) WriteRelease(_ context.Context, _ release.Release, rows []dataset.Row) error {
	if err := s.header(); err != nil {
		return err
	}

	for _, r := range rows {
		if err := s.w.Write(Record(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	s.w.Flush()

	return s.w.Error()
}

// Close writes the header if no release was written, flushes and closes the
// underlying file when the sink owns it.
func (s *CSV) Close() error {
	if err := s.header(); err != nil {
		return err
	}

	s.w.Flush()

	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if s.closer != nil {
		return s.closer.Close()
	}

	return nil
}

func (s *CSV) header() error {
	if s.started {
		return nil
	}

	s.started = true

	if err := s.w.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	return nil
}

// Record renders a row in Header order.
func Record(r dataset.Row) []string {
	return []string{
		r.Project,
		r.MethodName,
		r.Release,
		strconv.Itoa(r.LOC),
		strconv.Itoa(r.Complexity),
		strconv.Itoa(r.Parameters),
		strconv.Itoa(r.Duplication),
		strconv.Itoa(r.NR),
		strconv.Itoa(r.NAuth),
		strconv.Itoa(r.Added),
		strconv.Itoa(r.Deleted),
		strconv.Itoa(r.MaxChurn),
		strconv.FormatFloat(r.AvgChurn, 'f', -1, 64),
		r.BuggyLabel(),
	}
}
