package config

import (
	"net"
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds capture settings for one host.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Settle overrides the global settle delay for this site.
	// Zero keeps the global value.
	Settle time.Duration `yaml:"settle,omitempty"`
}

// File represents the structure of the .portalshot configuration file.
type File struct {
	// Sites maps "host" or "host:port" to site settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// Lookup returns the merged settings for a target URL.
// A "host:port" entry wins over a bare "host" entry; both are merged over
// the defaults.
func (cf *File) Lookup(rawURL string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return result
	}

	host := strings.ToLower(u.Hostname())
	if site, ok := cf.Sites[host]; ok {
		result = merge(result, site)
	}
	if port := u.Port(); port != "" {
		if site, ok := cf.Sites[net.JoinHostPort(host, port)]; ok {
			result = merge(result, site)
		}
	}
	return result
}

// merge overlays the non-zero fields of override onto base.
func merge(base, override SiteConfig) SiteConfig {
	result := base
	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.Settle > 0 {
		result.Settle = override.Settle
	}
	if len(override.Headers) > 0 {
		headers := make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	return result
}
