package fingerprint

import "errors"

var (
	// ErrEmptyImage is returned for a nil or zero-sized image.
	ErrEmptyImage = errors.New("empty image")

	// ErrCorruptImage is returned when an image cannot be decoded or hashed.
	ErrCorruptImage = errors.New("corrupt image")
)
