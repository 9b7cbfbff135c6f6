// Package templates reads output templates from CSV or Excel header rows.
package templates

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"receiptcsv/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a template from r. name decides the format: files ending in
// .xlsx are read with excelize, everything else as CSV.
func Parse(name string, r io.Reader) (domain.Template, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx":
		return ParseXLSX(name, r)
	case ".csv", ".txt", "":
		return ParseCSV(name, r)
	default:
		return domain.Template{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, ext)
	}
}

// ParseCSV reads the first row of a comma-delimited UTF-8 file as the template header.
func ParseCSV(name string, r io.Reader) (domain.Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Template{}, fmt.Errorf("reading template: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Template{}, fmt.Errorf("%w: header row is empty", domain.ErrInvalidTemplate)
	}
	if err != nil {
		return domain.Template{}, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	return build(name, header)
}

// ParseXLSX reads the first row of the first sheet as the template header.
func ParseXLSX(name string, r io.Reader) (domain.Template, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Template{}, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.Template{}, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidTemplate)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return domain.Template{}, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return domain.Template{}, fmt.Errorf("%w: header row is empty", domain.ErrInvalidTemplate)
	}
	header, err := rows.Columns()
	if err != nil {
		return domain.Template{}, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	return build(name, header)
}

// LoadFile reads a template from a file on disk.
func LoadFile(path string) (domain.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Template{}, fmt.Errorf("opening template: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(filepath.Base(path), f)
}

// build validates header and returns the template. Trailing empty cells are
// dropped; any other empty or duplicate name is rejected.
func build(name string, header []string) (domain.Template, error) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	for len(cols) > 0 && cols[len(cols)-1] == "" {
		cols = cols[:len(cols)-1]
	}
	if len(cols) == 0 {
		return domain.Template{}, fmt.Errorf("%w: header row is empty", domain.ErrInvalidTemplate)
	}

	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c == "" {
			return domain.Template{}, fmt.Errorf("%w: column %d has no name", domain.ErrInvalidTemplate, i+1)
		}
		if seen[c] {
			return domain.Template{}, fmt.Errorf("%w: duplicate column %q", domain.ErrInvalidTemplate, c)
		}
		seen[c] = true
	}

	return domain.Template{Name: name, Columns: cols}, nil
}
