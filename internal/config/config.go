package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "portalshot"

	// DefaultViewportWidth and DefaultViewportHeight fix the browser window so
	// screenshots of different targets are comparable.
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	// DefaultSettleDelay is how long a page may keep rendering after navigation.
	DefaultSettleDelay = 15 * time.Second

	// DefaultNavigationTimeout bounds a single navigation.
	DefaultNavigationTimeout = 60 * time.Second

	// DefaultLoginTimeout bounds the wait for a password field in login-gate mode.
	DefaultLoginTimeout = 5 * time.Second

	// DefaultURLColumn is the zero-based column holding URLs in the legacy
	// layout (the 4th column).
	DefaultURLColumn = 3

	// DefaultChangeLogPath is where the change log is written, relative to
	// the working directory.
	DefaultChangeLogPath = "hash_comparison_logs.csv"

	// DefaultPreflightTimeout bounds the DNS and TCP pre-flight checks.
	DefaultPreflightTimeout = 5 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Report formats accepted by Config.Format.
const (
	FormatPDF      = "pdf"
	FormatMarkdown = "markdown"
)

// Config holds all options of one capture run.
// It is populated from defaults, the config file and CLI flags, then passed
// down explicitly; nothing reads global state.
type Config struct {
	// InputPath is the target list (CSV or XLSX).
	InputPath string

	// OutputPath is the report file to write.
	OutputPath string

	// Format is FormatPDF or FormatMarkdown. Empty means infer from OutputPath.
	Format string

	// ChangeLogPath is the change log file. A .xlsx suffix selects XLSX.
	ChangeLogPath string

	// URLColumn is the zero-based column index holding URLs.
	// Ignored when URLColumnName is set.
	URLColumn int

	// URLColumnName selects the URL column by header name.
	URLColumnName string

	// Sheet is the XLSX worksheet to read. Empty uses the first sheet.
	Sheet string

	// LoginOnly enables login-gate mode: only pages showing a password
	// field are captured.
	LoginOnly bool

	// ViewportWidth and ViewportHeight size the headless browser window.
	ViewportWidth  int
	ViewportHeight int

	// SettleDelay is waited after navigation before capturing.
	SettleDelay time.Duration

	// NavigationTimeout bounds each navigation.
	NavigationTimeout time.Duration

	// LoginTimeout bounds the password-field wait in login-gate mode.
	LoginTimeout time.Duration

	// ChromePath overrides the browser executable. Empty uses chromedp's lookup.
	ChromePath string

	// KeepScreenshotsDir keeps screenshots in this directory instead of a
	// temporary one removed at the end of the run.
	KeepScreenshotsDir string

	// Preflight enables DNS and TCP checks before launching the browser.
	Preflight bool

	// Resolver is the DNS server ("host:port") used by pre-flight.
	// Empty uses /etc/resolv.conf.
	Resolver string

	// PreflightTimeout bounds each pre-flight check.
	PreflightTimeout time.Duration

	// UseEmbeddedTor starts an embedded Tor daemon and routes captures through it.
	UseEmbeddedTor bool

	// ExternalProxy is an existing SOCKS5 proxy ("host:port") for captures.
	ExternalProxy string

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the YAML file with per-site settings.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// SaveHistory persists the run to the history database in DBDir.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// NoColor disables terminal colors.
	NoColor bool

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ChangeLogPath:     DefaultChangeLogPath,
		URLColumn:         DefaultURLColumn,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		SettleDelay:       DefaultSettleDelay,
		NavigationTimeout: DefaultNavigationTimeout,
		LoginTimeout:      DefaultLoginTimeout,
		PreflightTimeout:  DefaultPreflightTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for portalshot.
// On Linux: ~/.local/share/portalshot
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for portalshot.
// On Linux: ~/.config/portalshot
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// FormatFromPath infers the report format from the output file extension.
// It returns an empty string when the extension is not recognized.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return ""
	}
}

// ResolvedFormat returns Format, or the format inferred from OutputPath.
func (c *Config) ResolvedFormat() string {
	if c.Format != "" {
		f := strings.ToLower(c.Format)
		if f == "md" {
			return FormatMarkdown
		}
		return f
	}
	return FormatFromPath(c.OutputPath)
}

// ProxyConfigured reports whether captures are routed through a SOCKS proxy.
func (c *Config) ProxyConfigured() bool {
	return c.UseEmbeddedTor || c.ExternalProxy != ""
}

// Validate checks if the configuration is valid and returns the first problem.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return ErrNoInput
	}
	if c.OutputPath == "" {
		return ErrNoOutput
	}

	switch c.ResolvedFormat() {
	case FormatPDF, FormatMarkdown:
	default:
		return ErrUnknownFormat
	}

	if c.ChangeLogPath == "" {
		return ErrNoChangeLog
	}
	if c.URLColumnName == "" && c.URLColumn < 0 {
		return ErrInvalidColumn
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return ErrInvalidViewport
	}
	if c.NavigationTimeout <= 0 || c.LoginTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}
	if c.UseEmbeddedTor && c.ExternalProxy != "" {
		return ErrConflictingProxies
	}
	return nil
}
