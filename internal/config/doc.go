// Package config provides configuration structures and utilities for portalshot.
//
// A Config is built from NewConfig defaults, then overlaid with values from
// an optional YAML file (.portalshot) and CLI flags. The YAML file carries
// per-site settings: extra headers, a cookie and a settle delay override,
// keyed by "host" or "host:port".
//
// Example .portalshot:
//
//	defaults:
//	  headers:
//	    User-Agent: portalshot
//	sites:
//	  intranet.example.com:
//	    cookie: "session=abc"
//	  slow.example.com:8443:
//	    settle: 30s
package config
