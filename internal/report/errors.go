package report

import "errors"

var (
	// ErrUnknownFormat is returned by NewBuilder for an unsupported format.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrMissingImage is returned when a group's representative has no
	// screenshot in Input.Images.
	ErrMissingImage = errors.New("missing screenshot for group representative")
)
