package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"driver-engagement-audit/internal/table"
)

// CSVDir stores each sheet as <dir>/<sheet>.csv with the header on line one.
type CSVDir struct {
	Dir string
}

// NewCSVDir returns a provider rooted at dir. The directory must exist.
func NewCSVDir(dir string) (*CSVDir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("csv source: %s is not a directory", dir)
	}
	return &CSVDir{Dir: dir}, nil
}

func (c *CSVDir) path(sheet string) (string, error) {
	sheet, err := sanitizeSheet(sheet)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Dir, sheet+".csv"), nil
}

// ReadTable reads a sheet. An empty file yields an empty table.
func (c *CSVDir) ReadTable(ctx context.Context, sheet string) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return table.Table{}, err
	}
	path, err := c.path(sheet)
	if err != nil {
		return table.Table{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return table.Table{}, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
		}
		return table.Table{}, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.Table{}, nil
		}
		return table.Table{}, fmt.Errorf("unable to read header of %s: %w", sheet, err)
	}

	out := table.Table{Header: header}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return table.Table{}, fmt.Errorf("unable to read %s: %w", sheet, err)
		}
		out.Rows = append(out.Rows, record)
	}
	return out, nil
}

// WriteTable replaces a sheet atomically through a temp file and rename.
func (c *CSVDir) WriteTable(ctx context.Context, sheet string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.path(sheet)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.Dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
