package targets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/portalshot/internal/model"
	"github.com/xuri/excelize/v2"
)

// DefaultColumn is the zero-based URL column of the legacy layout.
const DefaultColumn = 3

// naMarkers are cell values treated as missing, the same way spreadsheet
// exports and pandas-style tooling write blanks.
var naMarkers = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"#N/A": true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"None": true,
}

// loader holds the options of one Load call.
type loader struct {
	column     int
	columnName string
	sheet      string
}

// Option configures Load.
type Option func(*loader)

// WithColumn selects the URL column by zero-based index.
func WithColumn(index int) Option {
	return func(l *loader) {
		l.column = index
	}
}

// WithColumnName selects the URL column by header name (case-insensitive).
// It takes precedence over WithColumn.
func WithColumnName(name string) Option {
	return func(l *loader) {
		l.columnName = name
	}
}

// WithSheet selects the XLSX worksheet. The first sheet is used by default.
func WithSheet(name string) Option {
	return func(l *loader) {
		l.sheet = name
	}
}

// Load reads path and returns the unique targets in first-seen order.
func Load(path string, opts ...Option) ([]model.Target, error) {
	l := &loader{column: DefaultColumn}
	for _, opt := range opts {
		opt(l)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = readDelimited(path, ',')
	case ".tsv":
		rows, err = readDelimited(path, '\t')
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path, l.sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
	}
	if err != nil {
		return nil, err
	}

	values, err := l.extract(rows)
	if err != nil {
		return nil, err
	}

	unique := Unique(values)
	result := make([]model.Target, 0, len(unique))
	for _, v := range unique {
		result = append(result, model.NewTarget(v))
	}
	return result, nil
}

// extract returns the non-missing values of the URL column, header excluded.
func (l *loader) extract(rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col, err := l.resolveColumn(header)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if naMarkers[v] {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

func (l *loader) resolveColumn(header []string) (int, error) {
	if l.columnName != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(l.columnName)) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: no header named %q", ErrColumnNotFound, l.columnName)
	}
	if l.column < 0 || l.column >= len(header) {
		return 0, fmt.Errorf("%w: index %d, header has %d columns", ErrColumnNotFound, l.column, len(header))
	}
	return l.column, nil
}

// Unique removes empty strings and duplicates, keeping first occurrences.
// Comparison is case-sensitive.
func Unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}
