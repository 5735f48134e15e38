package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// redactedKeys are attribute keys whose values are always masked.
// Per-site config carries cookies and arbitrary headers, and both end up
// in debug logs.
var redactedKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"session":             true,
	"sessionid":           true,
	"session_id":          true,
	"jsessionid":          true,
	"sid":                 true,
}

// redactedKeywords mask any key containing them.
var redactedKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "apikey", "api_key",
}

// redactedValuePatterns mask string values regardless of key.
var redactedValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
}

// sensitiveQueryParams are URL query parameters whose values are masked.
var sensitiveQueryParams = []string{"token", "access_token", "api_key", "apikey", "key", "password", "sig", "signature"}

// userinfoPattern finds "scheme://user:password@" inside free text.
var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^/\s:@]+):[^/\s@]+@`)

// SecureHandler wraps an slog.Handler and redacts secrets before records
// reach it. Target URLs are logged constantly, so embedded credentials and
// signed query strings are masked in both attributes and messages.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, RedactText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

// WithAttrs returns a new handler with the given (redacted) attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isRedactedKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if matchesRedactedPattern(s) {
			return slog.String(a.Key, MaskValue)
		}
		if masked := RedactURL(s); masked != s {
			return slog.String(a.Key, masked)
		}
		if masked := RedactText(s); masked != s {
			return slog.String(a.Key, masked)
		}
	}
	return a
}

func isRedactedKey(key string) bool {
	k := strings.ToLower(key)
	if redactedKeys[k] {
		return true
	}
	for _, kw := range redactedKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func matchesRedactedPattern(value string) bool {
	for _, p := range redactedValuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the password in the userinfo and the values of sensitive
// query parameters. Strings that are not absolute URLs are returned as is.
func RedactURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		queryChanged := false
		for _, name := range sensitiveQueryParams {
			for key := range q {
				if strings.EqualFold(key, name) {
					q.Set(key, "xxxxx")
					queryChanged = true
				}
			}
		}
		if queryChanged {
			u.RawQuery = q.Encode()
			changed = true
		}
	}

	if !changed {
		return raw
	}
	return u.String()
}

// RedactText masks "user:password@" userinfo of URLs embedded in free text,
// such as log lines forwarded to the terminal.
func RedactText(s string) string {
	return userinfoPattern.ReplaceAllString(s, "$1:xxxxx@")
}

// NewSecureLogger creates a text slog.Logger with redaction.
// verbose selects Debug level; otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger creates a JSON slog.Logger with redaction.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
