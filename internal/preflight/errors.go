package preflight

import "errors"

var (
	// ErrNoHost is returned for targets without a host.
	ErrNoHost = errors.New("target has no host")

	// ErrNXDomain is returned when the name does not exist.
	ErrNXDomain = errors.New("host does not exist (NXDOMAIN)")

	// ErrNoAddress is returned when the name has neither A nor AAAA records.
	ErrNoAddress = errors.New("host has no A or AAAA records")

	// ErrLookupFailed is returned when the resolver answers with an error code.
	ErrLookupFailed = errors.New("DNS lookup failed")

	// ErrUnreachable is returned when the TCP connection cannot be made.
	ErrUnreachable = errors.New("host is unreachable")
)
