package model

import (
	"fmt"
	"strconv"
)

// Fingerprint is a 64-bit perceptual hash rendered as 16 lowercase hex digits.
// Two captures with equal fingerprints are the same rendered page.
type Fingerprint string

// FingerprintFromUint64 formats a raw hash value.
func FingerprintFromUint64(v uint64) Fingerprint {
	return Fingerprint(fmt.Sprintf("%016x", v))
}

// Uint64 parses the fingerprint back into its raw value.
func (f Fingerprint) Uint64() (uint64, error) {
	return strconv.ParseUint(string(f), 16, 64)
}

// Group is the set of URLs sharing one fingerprint.
type Group struct {
	// Fingerprint is the shared hash.
	Fingerprint Fingerprint `json:"fingerprint"`

	// URLs holds the members in first-seen order. URLs[0] is the representative.
	URLs []string `json:"urls"`
}

// Representative returns the URL whose image stands for the group.
func (g Group) Representative() string {
	if len(g.URLs) == 0 {
		return ""
	}
	return g.URLs[0]
}

// Additional returns every member after the representative.
func (g Group) Additional() []string {
	if len(g.URLs) < 2 {
		return nil
	}
	return g.URLs[1:]
}
