package capture

import "errors"

var (
	// ErrInvalidScheme is returned for URLs that do not start with
	// "http://" or "https://".
	ErrInvalidScheme = errors.New("URL must start with http:// or https://")

	// ErrOnionWithoutProxy is returned for .onion targets when no Tor proxy
	// is configured.
	ErrOnionWithoutProxy = errors.New(".onion target requires --tor or --external-tor")

	// ErrInvalidOnionAddress is returned for .onion hosts that are not valid
	// v3 addresses.
	ErrInvalidOnionAddress = errors.New("invalid v3 onion address")

	// ErrNotLoginPage is returned in login-gate mode when no password field
	// appears within the login timeout. It is an expected outcome.
	ErrNotLoginPage = errors.New("no login form found")

	// ErrEmptyScreenshot is returned when the browser produced no image data.
	ErrEmptyScreenshot = errors.New("browser returned an empty screenshot")
)
