package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// They are sentinels so callers can match them with errors.Is.
var (
	// ErrNoInput is returned when no target list is given.
	ErrNoInput = errors.New("no input file specified")

	// ErrNoOutput is returned when no report path is given.
	ErrNoOutput = errors.New("no output file specified: use --output")

	// ErrUnknownFormat is returned when the report format is neither pdf nor
	// markdown and cannot be inferred from the output extension.
	ErrUnknownFormat = errors.New("unknown report format: use --format pdf|markdown or a .pdf/.md output path")

	// ErrNoChangeLog is returned when the change log path is empty.
	ErrNoChangeLog = errors.New("change log path must not be empty")

	// ErrInvalidColumn is returned for a negative URL column index.
	ErrInvalidColumn = errors.New("invalid URL column: must be non-negative")

	// ErrInvalidViewport is returned when the viewport is not positive.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrInvalidTimeout is returned when a capture timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSettleDelay is returned for a negative settle delay.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrConflictingProxies is returned when both --tor and --external-tor are set.
	ErrConflictingProxies = errors.New("conflicting proxy options: --tor and --external-tor cannot be used together")
)
