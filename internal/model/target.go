package model

import (
	"net/url"
	"strconv"
	"strings"
)

// Supported target schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// ColorClass is the transport/port risk class of a target.
// Reports color every URL by its class.
type ColorClass int

const (
	// ClassHTTPS is a target served over TLS on a standard port.
	ClassHTTPS ColorClass = iota

	// ClassHTTP is a plaintext target on a standard port.
	ClassHTTP

	// ClassNonStandardPort is any target whose explicit port is neither 80 nor 443.
	// It overrides the scheme-based classes.
	ClassNonStandardPort

	// ClassOther is a target whose scheme is neither http nor https.
	// It is colored like HTTPS and is not listed in the legend.
	ClassOther
)

// String returns the class name used in logs.
func (c ColorClass) String() string {
	switch c {
	case ClassHTTPS:
		return "https"
	case ClassHTTP:
		return "http"
	case ClassNonStandardPort:
		return "non-standard-port"
	case ClassOther:
		return "other"
	default:
		return "unknown"
	}
}

// Target is one web endpoint taken from the input list.
type Target struct {
	// Raw is the URL exactly as read from the input. Uniqueness is decided on Raw.
	Raw string `json:"url"`

	// Scheme is the lowercase URL scheme, empty when Raw has none.
	Scheme string `json:"scheme,omitempty"`

	// Host is the hostname or IP literal without port.
	Host string `json:"host,omitempty"`

	// Port is the explicit port, 0 when Raw does not carry one.
	Port int `json:"port,omitempty"`
}

// NewTarget parses raw into a Target.
// Parsing never fails: an unparsable URL keeps only Raw, and the capture
// stage rejects it later.
func NewTarget(raw string) Target {
	t := Target{Raw: raw}

	u, err := url.Parse(raw)
	if err != nil {
		return t
	}

	t.Scheme = strings.ToLower(u.Scheme)
	t.Host = u.Hostname()
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			t.Port = n
		}
	}
	return t
}

// Class returns the color class of the target.
func (t Target) Class() ColorClass {
	class := ClassOther
	switch t.Scheme {
	case SchemeHTTPS:
		class = ClassHTTPS
	case SchemeHTTP:
		class = ClassHTTP
	}

	if t.Port != 0 && t.Port != 80 && t.Port != 443 {
		class = ClassNonStandardPort
	}
	return class
}

// EffectivePort returns the explicit port or the scheme default.
// It returns 0 for unknown schemes without a port.
func (t Target) EffectivePort() int {
	if t.Port != 0 {
		return t.Port
	}
	switch t.Scheme {
	case SchemeHTTPS:
		return 443
	case SchemeHTTP:
		return 80
	default:
		return 0
	}
}

// HasSupportedScheme reports whether Raw starts with an explicit
// "http://" or "https://" prefix.
func (t Target) HasSupportedScheme() bool {
	return strings.HasPrefix(t.Raw, "http://") || strings.HasPrefix(t.Raw, "https://")
}

// IsOnion reports whether the target host is a Tor hidden service.
func (t Target) IsOnion() bool {
	return strings.HasSuffix(strings.ToLower(t.Host), ".onion")
}

// ClassifyURL is shorthand for NewTarget(raw).Class().
func ClassifyURL(raw string) ColorClass {
	return NewTarget(raw).Class()
}
