package targets

import "errors"

var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input file not found")

	// ErrEmptyInput is returned when the input has no header row.
	ErrEmptyInput = errors.New("input file has no header row")

	// ErrColumnNotFound is returned when the URL column is absent from the header.
	ErrColumnNotFound = errors.New("URL column not found")

	// ErrUnsupportedInput is returned for file types other than CSV and XLSX.
	ErrUnsupportedInput = errors.New("unsupported input file type: use .csv, .tsv or .xlsx")
)
