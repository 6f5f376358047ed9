package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_MasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{"user-password is masked", "user-password", "hunter2", true},
		{"Password in upper case is masked", "Password", "hunter2", true},
		{"keyword inside a dotted key is masked", "export.user_password", "hunter2", true},
		{"token is masked", "token", "abc", true},
		{"title is kept", "title", "Tax return 2025", false},
		{"digest is kept", "digest", strings.Repeat("ab", 32), false},
		{"page uuid is kept", "page", "1b4e28ba-2fa1-11d2-883f-0016d3cca427", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
			logger.Info("export", tt.key, tt.value)

			out := buf.String()
			if tt.wantMask {
				if strings.Contains(out, tt.value) {
					t.Errorf("expected %q to be masked, got %s", tt.value, out)
				}
				if !strings.Contains(out, MaskValue) {
					t.Errorf("expected mask in output, got %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.value) {
				t.Errorf("expected %q to be kept, got %s", tt.value, out)
			}
		})
	}
}

func TestSecureHandler_MasksSensitiveValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
	logger.Info("options", "raw", "compression=jpg user-password=hunter2")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("expected inline password to be masked, got %s", buf.String())
	}
}

func TestSecureHandler_MasksArgumentVectors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSecureHandler(slog.NewJSONHandler(&buf, nil)))
	args := []string{"--user-password", "hunter2", "in.pdf", "out.pdf"}
	logger.Info("run", "args", args)

	var rec struct {
		Args []string `json:"args"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	want := []string{"--user-password", MaskValue, "in.pdf", "out.pdf"}
	if strings.Join(rec.Args, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, rec.Args)
	}
	if args[1] != "hunter2" {
		t.Error("expected the caller's slice not to be modified")
	}
}

func TestSecureHandler_Groups(t *testing.T) {
	t.Parallel()

	t.Run("attributes inside groups are masked", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
		logger.Info("export", slog.Group("pdf", slog.String("user-password", "hunter2"), slog.Int("quality", 75)))
		out := buf.String()
		if strings.Contains(out, "hunter2") {
			t.Errorf("expected password to be masked, got %s", out)
		}
		if !strings.Contains(out, "pdf.quality=75") {
			t.Errorf("expected quality to be kept, got %s", out)
		}
	})

	t.Run("WithAttrs masks preset attributes", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil))).With("password", "hunter2")
		logger.Info("saved")
		if strings.Contains(buf.String(), "hunter2") {
			t.Errorf("expected password to be masked, got %s", buf.String())
		}
	})

	t.Run("WithGroup keeps masking", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil))).WithGroup("job")
		logger.Info("saved", "token", "abc")
		if strings.Contains(buf.String(), "abc") {
			t.Errorf("expected token to be masked, got %s", buf.String())
		}
	})
}

func TestNewSecureLogger(t *testing.T) {
	t.Parallel()

	t.Run("warn level hides debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, Options{})
		logger.Debug("hidden")
		logger.Warn("shown")
		if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
			t.Errorf("unexpected output %s", buf.String())
		}
	})

	t.Run("verbose logs debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		NewSecureLogger(&buf, Options{Verbose: true}).Debug("visible")
		if !strings.Contains(buf.String(), "visible") {
			t.Errorf("expected debug output, got %s", buf.String())
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		NewSecureLogger(&buf, Options{JSON: true}).Warn("disk low", "free_mb", 12)
		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("expected JSON, got %s: %v", buf.String(), err)
		}
		if rec["msg"] != "disk low" {
			t.Errorf("unexpected record %v", rec)
		}
	})
}

func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	if h := NewSecureHandler(nil); h.handler == nil {
		t.Error("expected default handler to be used")
	}
}
