package capture

import (
	"context"
	"time"
)

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// SessionOptions configure one browser session.
type SessionOptions struct {
	// Viewport fixes the window size so screenshots are comparable.
	Viewport Viewport

	// ProxyServer routes all traffic, e.g. "socks5://127.0.0.1:9050".
	ProxyServer string

	// Headers are sent with every request of the session.
	Headers map[string]string
}

// Browser opens isolated browser sessions.
type Browser interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is one isolated browser instance showing a single page.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitFor waits up to timeout for an element matching the CSS selector.
	// It returns false with a nil error when the timeout expires.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error)

	// Screenshot returns the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// Close tears the session down. It is safe to call more than once.
	Close() error
}
