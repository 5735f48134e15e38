package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/portalshot/internal/config"
	"github.com/nao1215/portalshot/internal/model"
	"github.com/nao1215/portalshot/internal/tor"
)

// Shot is the result of a successful capture.
type Shot struct {
	// Path is where the PNG was written.
	Path string

	// Title is the page title, empty when it could not be read.
	Title string
}

// Unit captures one URL per call through a Browser.
type Unit struct {
	browser           Browser
	viewport          Viewport
	settleDelay       time.Duration
	navigationTimeout time.Duration
	loginTimeout      time.Duration
	loginGate         bool
	proxyAddress      string
	sites             *config.File
	logger            *slog.Logger
	sleep             func(ctx context.Context, d time.Duration) error
}

// Option configures a Unit.
type Option func(*Unit)

// WithViewport sets the browser window size.
func WithViewport(width, height int) Option {
	return func(u *Unit) {
		u.viewport = Viewport{Width: width, Height: height}
	}
}

// WithSettleDelay sets the wait between navigation and capture.
func WithSettleDelay(d time.Duration) Option {
	return func(u *Unit) {
		u.settleDelay = d
	}
}

// WithNavigationTimeout bounds each navigation.
func WithNavigationTimeout(d time.Duration) Option {
	return func(u *Unit) {
		u.navigationTimeout = d
	}
}

// WithLoginTimeout bounds the password-field wait of login-gate mode.
func WithLoginTimeout(d time.Duration) Option {
	return func(u *Unit) {
		u.loginTimeout = d
	}
}

// WithLoginGate enables login-gate mode: only pages that show a password
// field are captured.
func WithLoginGate(enabled bool) Option {
	return func(u *Unit) {
		u.loginGate = enabled
	}
}

// WithProxy routes sessions through the SOCKS5 proxy at addr ("host:port").
func WithProxy(addr string) Option {
	return func(u *Unit) {
		u.proxyAddress = addr
	}
}

// WithSiteConfigs applies per-site headers, cookies and settle delays.
func WithSiteConfigs(sites *config.File) Option {
	return func(u *Unit) {
		u.sites = sites
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Unit) {
		u.logger = logger
	}
}

// NewUnit creates a Unit using browser with default timings.
func NewUnit(browser Browser, opts ...Option) *Unit {
	u := &Unit{
		browser:           browser,
		viewport:          Viewport{Width: config.DefaultViewportWidth, Height: config.DefaultViewportHeight},
		settleDelay:       config.DefaultSettleDelay,
		navigationTimeout: config.DefaultNavigationTimeout,
		loginTimeout:      config.DefaultLoginTimeout,
		logger:            slog.Default(),
		sleep:             sleepContext,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Capture screenshots rawURL into dest.
// A nil error means the PNG was written; every failure, including the
// expected ErrNotLoginPage, is returned as an error.
func (u *Unit) Capture(ctx context.Context, rawURL, dest string) (Shot, error) {
	target := model.NewTarget(rawURL)
	if err := u.check(target); err != nil {
		return Shot{}, err
	}

	site := u.sites.Lookup(rawURL)
	session, err := u.browser.Open(ctx, u.sessionOptions(site))
	if err != nil {
		return Shot{}, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			u.logger.Debug("failed to close browser session", "url", rawURL, "error", cerr)
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, u.navigationTimeout)
	err = session.Navigate(navCtx, rawURL)
	cancel()
	if err != nil {
		return Shot{}, fmt.Errorf("navigation failed: %w", err)
	}

	settle := u.settleDelay
	if site.Settle > 0 {
		settle = site.Settle
	}
	if err := u.sleep(ctx, settle); err != nil {
		return Shot{}, err
	}

	var gateHTML string
	if u.loginGate {
		found, err := session.WaitFor(ctx, PasswordSelector, u.loginTimeout)
		if err != nil {
			return Shot{}, fmt.Errorf("failed to look for login form: %w", err)
		}
		if !found {
			return Shot{}, ErrNotLoginPage
		}
		// WaitFor may match a field that is no longer in the document.
		html, err := session.HTML(ctx)
		if err != nil {
			return Shot{}, fmt.Errorf("failed to read login page: %w", err)
		}
		if !HasPasswordField(html) {
			return Shot{}, ErrNotLoginPage
		}
		gateHTML = html
	}

	png, err := session.Screenshot(ctx)
	if err != nil {
		return Shot{}, fmt.Errorf("screenshot failed: %w", err)
	}
	if len(png) == 0 {
		return Shot{}, ErrEmptyScreenshot
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return Shot{}, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(dest, png, 0o600); err != nil {
		return Shot{}, fmt.Errorf("failed to write screenshot: %w", err)
	}

	shot := Shot{Path: dest}
	if gateHTML != "" {
		shot.Title = PageTitle(gateHTML)
	} else if html, err := session.HTML(ctx); err == nil {
		shot.Title = PageTitle(html)
	} else {
		u.logger.Debug("failed to read page title", "url", rawURL, "error", err)
	}
	return shot, nil
}

// check rejects targets that cannot be captured before a browser starts.
func (u *Unit) check(target model.Target) error {
	if !target.HasSupportedScheme() {
		return fmt.Errorf("%w: %s", ErrInvalidScheme, target.Raw)
	}
	if !target.IsOnion() {
		return nil
	}
	if u.proxyAddress == "" {
		return ErrOnionWithoutProxy
	}
	if !tor.IsValidV3Address(target.Host) {
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, target.Host)
	}
	return nil
}

func (u *Unit) sessionOptions(site config.SiteConfig) SessionOptions {
	opts := SessionOptions{Viewport: u.viewport}
	if u.proxyAddress != "" {
		opts.ProxyServer = "socks5://" + u.proxyAddress
	}
	if len(site.Headers) > 0 || site.Cookie != "" {
		opts.Headers = make(map[string]string, len(site.Headers)+1)
		for k, v := range site.Headers {
			opts.Headers[k] = v
		}
		if site.Cookie != "" {
			opts.Headers["Cookie"] = site.Cookie
		}
	}
	return opts
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
