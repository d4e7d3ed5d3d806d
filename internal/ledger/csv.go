package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

var csvHeader = []string{"Name", "Date", "Time"}

// CSVStore keeps the ledger in a CSV file with a Name,Date,Time header.
type CSVStore struct {
	path string
}

// NewCSVStore creates a store for the file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the file location.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads all records, creating a header-only file if none exists or the
// file is empty.
func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.create(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		// An empty file gets its header now, so the first Append is not
		// taken for the header on the next load.
		if err := s.create(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ledger row: %w", err)
		}
		if len(row) <= max(cols[0], cols[1], cols[2]) {
			return nil, fmt.Errorf("ledger row %v has %d columns", row, len(row))
		}
		records = append(records, Record{
			Name: row[cols[0]],
			Date: row[cols[1]],
			Time: row[cols[2]],
		})
	}

	return records, nil
}

// Append writes one row and syncs the file.
func (s *CSVStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{rec.Name, rec.Date, rec.Time}); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing ledger row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing ledger file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger file: %w", err)
	}
	return nil
}

func (s *CSVStore) create() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating ledger file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger header: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger file: %w", err)
	}
	return nil
}

// columnIndex maps the Name, Date and Time columns to their positions.
func columnIndex(header []string) ([3]int, error) {
	var cols [3]int
	for i, name := range csvHeader {
		idx := slices.Index(header, name)
		if idx < 0 {
			return cols, fmt.Errorf("ledger header %v is missing column %q", header, name)
		}
		cols[i] = idx
	}
	return cols, nil
}
