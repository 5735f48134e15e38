package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default viewport is 1920x1080", func(t *testing.T) {
		t.Parallel()
		if cfg.ViewportWidth != 1920 || cfg.ViewportHeight != 1080 {
			t.Errorf("expected 1920x1080, got %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
		}
	})

	t.Run("default settle delay is 15 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.SettleDelay != 15*time.Second {
			t.Errorf("expected 15s, got %v", cfg.SettleDelay)
		}
	})

	t.Run("default login timeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.LoginTimeout != 5*time.Second {
			t.Errorf("expected 5s, got %v", cfg.LoginTimeout)
		}
	})

	t.Run("default navigation timeout is 60 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.NavigationTimeout != 60*time.Second {
			t.Errorf("expected 60s, got %v", cfg.NavigationTimeout)
		}
	})

	t.Run("default URL column is the fourth column", func(t *testing.T) {
		t.Parallel()
		if cfg.URLColumn != 3 {
			t.Errorf("expected 3, got %d", cfg.URLColumn)
		}
	})

	t.Run("default change log path is hash_comparison_logs.csv", func(t *testing.T) {
		t.Parallel()
		if cfg.ChangeLogPath != "hash_comparison_logs.csv" {
			t.Errorf("unexpected change log path %q", cfg.ChangeLogPath)
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory to be true")
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to be set")
		}
	})

	t.Run("no proxy by default", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyConfigured() {
			t.Error("expected no proxy")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.InputPath = "targets.csv"
		cfg.OutputPath = "report.pdf"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "empty input returns ErrNoInput", modify: func(c *Config) { c.InputPath = "" }, want: ErrNoInput},
		{name: "empty output returns ErrNoOutput", modify: func(c *Config) { c.OutputPath = "" }, want: ErrNoOutput},
		{name: "unknown extension returns ErrUnknownFormat", modify: func(c *Config) { c.OutputPath = "report.docx" }, want: ErrUnknownFormat},
		{name: "unknown explicit format returns ErrUnknownFormat", modify: func(c *Config) { c.Format = "word" }, want: ErrUnknownFormat},
		{name: "empty change log returns ErrNoChangeLog", modify: func(c *Config) { c.ChangeLogPath = "" }, want: ErrNoChangeLog},
		{name: "negative column returns ErrInvalidColumn", modify: func(c *Config) { c.URLColumn = -1 }, want: ErrInvalidColumn},
		{name: "zero viewport returns ErrInvalidViewport", modify: func(c *Config) { c.ViewportWidth = 0 }, want: ErrInvalidViewport},
		{name: "zero navigation timeout returns ErrInvalidTimeout", modify: func(c *Config) { c.NavigationTimeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero login timeout returns ErrInvalidTimeout", modify: func(c *Config) { c.LoginTimeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative settle returns ErrInvalidSettleDelay", modify: func(c *Config) { c.SettleDelay = -time.Second }, want: ErrInvalidSettleDelay},
		{name: "both proxies return ErrConflictingProxies", modify: func(c *Config) {
			c.UseEmbeddedTor = true
			c.ExternalProxy = "127.0.0.1:9050"
		}, want: ErrConflictingProxies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("negative column is accepted when a column name is set", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.URLColumn = -1
		cfg.URLColumnName = "URL"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero settle delay is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.SettleDelay = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestFormatFromPath tests report format inference from file extensions.
func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", FormatPDF},
		{"REPORT.PDF", FormatPDF},
		{"out/report.md", FormatMarkdown},
		{"report.markdown", FormatMarkdown},
		{"report.docx", ""},
		{"report", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := FormatFromPath(tt.path); got != tt.want {
				t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	t.Run("explicit format wins over extension", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{OutputPath: "report.pdf", Format: "Markdown"}
		if got := cfg.ResolvedFormat(); got != FormatMarkdown {
			t.Errorf("expected markdown, got %q", got)
		}
	})
}

// TestFileLookup tests per-site settings resolution.
func TestFileLookup(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Headers: map[string]string{"User-Agent": "portalshot", "Accept-Language": "en"},
		},
		Sites: map[string]SiteConfig{
			"a.com": {
				Cookie:  "session=abc",
				Headers: map[string]string{"Accept-Language": "ja"},
			},
			"a.com:8443": {
				Settle: 30 * time.Second,
			},
		},
	}

	t.Run("unknown host returns defaults", func(t *testing.T) {
		t.Parallel()
		sc := cf.Lookup("https://b.com")
		if sc.Cookie != "" {
			t.Errorf("expected no cookie, got %q", sc.Cookie)
		}
		if sc.Headers["User-Agent"] != "portalshot" {
			t.Errorf("expected default header, got %v", sc.Headers)
		}
	})

	t.Run("host entry overrides defaults and merges headers", func(t *testing.T) {
		t.Parallel()
		sc := cf.Lookup("https://A.com/login")
		if sc.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", sc.Cookie)
		}
		if sc.Headers["Accept-Language"] != "ja" {
			t.Errorf("expected overridden header, got %v", sc.Headers)
		}
		if sc.Headers["User-Agent"] != "portalshot" {
			t.Errorf("expected inherited header, got %v", sc.Headers)
		}
	})

	t.Run("host:port entry layers over host entry", func(t *testing.T) {
		t.Parallel()
		sc := cf.Lookup("https://a.com:8443/")
		if sc.Settle != 30*time.Second {
			t.Errorf("expected 30s settle, got %v", sc.Settle)
		}
		if sc.Cookie != "session=abc" {
			t.Errorf("expected host cookie to carry over, got %q", sc.Cookie)
		}
	})

	t.Run("defaults are not mutated by merging", func(t *testing.T) {
		t.Parallel()
		_ = cf.Lookup("https://a.com")
		if cf.Defaults.Headers["Accept-Language"] != "en" {
			t.Error("defaults were mutated")
		}
	})

	t.Run("nil file returns zero settings", func(t *testing.T) {
		t.Parallel()
		var nilFile *File
		sc := nilFile.Lookup("https://a.com")
		if sc.Cookie != "" || sc.Headers != nil || sc.Settle != 0 {
			t.Errorf("expected zero SiteConfig, got %+v", sc)
		}
	})
}

// TestLoadConfigFile tests YAML loading of the per-site configuration file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads sites and durations", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  headers:
    User-Agent: portalshot
sites:
  slow.example.com:8443:
    settle: 30s
    cookie: "a=b"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		site, ok := cf.Sites["slow.example.com:8443"]
		if !ok {
			t.Fatalf("site not loaded: %v", cf.Sites)
		}
		if site.Settle != 30*time.Second {
			t.Errorf("expected 30s, got %v", site.Settle)
		}
		if site.Cookie != "a=b" {
			t.Errorf("expected cookie a=b, got %q", site.Cookie)
		}
		if cf.Defaults.Headers["User-Agent"] != "portalshot" {
			t.Errorf("unexpected defaults %v", cf.Defaults)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("empty file yields an initialized sites map", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected non-nil Sites")
		}
	})

	t.Run("invalid YAML returns an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestFindConfigFile tests explicit path resolution.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}
