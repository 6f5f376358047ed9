package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = map[string]bool{
	"password":       true,
	"passwd":         true,
	"user-password":  true,
	"user_password":  true,
	"owner-password": true,
	"owner_password": true,
	"passphrase":     true,
	"secret":         true,
	"token":          true,
	"api_key":        true,
	"credentials":    true,
}

// sensitiveKeywords mark a key as sensitive when they appear anywhere in it,
// e.g. "pdf.user-password" or "smtp_password".
var sensitiveKeywords = []string{"password", "passwd", "passphrase", "secret", "token", "credential"}

// sensitivePatterns match values that carry a secret inline, typically a
// command line or option string that was logged whole.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(user|owner)[-_]?password\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks sensitive attributes before
// they reach it. Export options carry the optional PDF user password, and
// they are logged at debug level by the save handlers, so every logger the
// application builds goes through this handler.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a SecureHandler wrapping handler.
// A nil handler means slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(mask(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs masks attrs and returns a handler that carries them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = mask(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func mask(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = mask(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if isSensitiveValue(a.Value.String()) {
			return slog.String(a.Key, MaskValue)
		}
	case slog.KindAny:
		// Tool argument vectors are logged as []string.
		if args, ok := a.Value.Any().([]string); ok {
			return slog.Any(a.Key, maskArgs(args))
		}
	}
	return a
}

func maskArgs(args []string) []string {
	var out []string
	for i, arg := range args {
		if isSensitiveValue(arg) || (i > 0 && isSensitiveKey(strings.TrimLeft(args[i-1], "-"))) {
			if out == nil {
				out = make([]string, len(args))
				copy(out, args)
			}
			out[i] = MaskValue
		}
	}
	if out == nil {
		return args
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// Options selects the log level and format.
type Options struct {
	// Verbose logs at Debug level instead of Warn.
	Verbose bool

	// JSON writes one JSON object per record instead of logfmt text.
	JSON bool
}

// NewSecureLogger returns a logger writing to w through a SecureHandler.
func NewSecureLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(NewSecureHandler(h))
}
