package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for catalog files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
)

// Format is a catalog file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// RequiredColumns must appear in every catalog header.
var RequiredColumns = []string{"product_id", "title", "description", "category"}

// FormatFromPath infers the catalog format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ParseFormat accepts "csv", "xlsx" or the same with a leading dot, in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// rowSource yields catalog records; io.EOF ends the stream.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

type csvSource struct {
	r *csv.Reader
}

func newCSVSource(r io.Reader) *csvSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &csvSource{r: cr}
}

func (s *csvSource) Next() ([]string, error) { return s.r.Read() }
func (s *csvSource) Close() error            { return nil }

// xlsxSource streams the rows of the first worksheet.
type xlsxSource struct {
	f    *excelize.File
	rows *excelize.Rows
}

func newXLSXSource(r io.Reader) (*xlsxSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return &xlsxSource{f: f, rows: rows}, nil
}

func (s *xlsxSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *xlsxSource) Close() error {
	s.rows.Close()
	return s.f.Close()
}

func openSource(r io.Reader, format Format) (rowSource, error) {
	switch format {
	case FormatCSV:
		return newCSVSource(r), nil
	case FormatXLSX:
		return newXLSXSource(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// columnMap resolves header names to record positions.
type columnMap map[string]int

func newColumnMap(header []string) (columnMap, error) {
	cols := make(columnMap, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}
	for _, req := range RequiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}
	return cols, nil
}

func (c columnMap) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// product maps one record onto a Product. Blank rows return (nil, nil).
func (c columnMap) product(record []string) (*models.Product, error) {
	p := &models.Product{
		ProductID:   c.get(record, "product_id"),
		Title:       c.get(record, "title"),
		Description: c.get(record, "description"),
		Category:    c.get(record, "category"),
		Brand:       c.get(record, "brand"),
		Size:        c.get(record, "size"),
		Color:       c.get(record, "color"),
	}
	if p.ProductID == "" {
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("product_id is empty")
	}
	var err error
	if p.Price, err = parseOptionalFloat(c.get(record, "price")); err != nil {
		return nil, fmt.Errorf("product %s: invalid price: %w", p.ProductID, err)
	}
	if p.Rating, err = parseOptionalFloat(c.get(record, "rating")); err != nil {
		return nil, fmt.Errorf("product %s: invalid rating: %w", p.ProductID, err)
	}
	return p, nil
}
