package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/scantpaper/internal/app"
	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/report"
)

// writeTestConfig writes the init template to a temporary file so tests do
// not pick up a configuration file from the home directory.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := runInit(t, "-o", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	return path
}

// writeScans writes n small PNG scans.
func writeScans(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := range n {
		img := image.NewGray(image.Rect(0, 0, 10, 8))
		for y := range 8 {
			for x := range 10 {
				img.SetGray(x, y, color.Gray{Y: uint8(x*25 + y + i)})
			}
		}
		path := filepath.Join(dir, "page"+string(rune('1'+i))+".png")
		if _, err := imageops.Save(path, img, imageops.SaveOptions{XResolution: 200, YResolution: 200}); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

// execute runs the root command with args.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// TestNewProcessCmd tests the process command creation.
func TestNewProcessCmd(t *testing.T) {
	t.Parallel()

	cmd := NewProcessCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "process [image...]" {
			t.Errorf("expected use 'process [image...]', got %q", cmd.Use)
		}
	})

	flags := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"step", "s", "[]"},
		{"range", "r", "all"},
		{"workers", "w", ""},
		{"timeout", "t", config.DefaultToolTimeout.String()},
		{"keep-session", "k", "false"},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"output", "o", ""},
		{"session-root", "", ""},
		{"history-limit", "", "0"},
		{"pdf-password", "", ""},
	}
	for _, f := range flags {
		t.Run("has "+f.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(f.name)
			if flag == nil {
				t.Fatalf("expected %s flag", f.name)
			}
			if flag.Shorthand != f.shorthand {
				t.Errorf("expected shorthand %q, got %q", f.shorthand, flag.Shorthand)
			}
			if f.def != "" && flag.DefValue != f.def {
				t.Errorf("expected default %q, got %q", f.def, flag.DefValue)
			}
		})
	}
}

// TestRunProcessCmd tests the process command end to end with operations
// that need no external tools.
func TestRunProcessCmd(t *testing.T) {
	t.Parallel()

	t.Run("rotates and saves a PDF", func(t *testing.T) {
		t.Parallel()

		pdf := filepath.Join(t.TempDir(), "out.pdf")
		args := append([]string{"process",
			"--config", writeTestConfig(t),
			"--session-root", t.TempDir(),
			"-s", "rotate:90",
			"-s", "save-pdf:" + pdf,
			"--json",
		}, writeScans(t, 2)...)

		stdout, stderr, err := execute(t, args...)
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if !strings.Contains(stderr, "saved "+pdf) {
			t.Errorf("expected progress for the save, got %q", stderr)
		}

		var got report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("invalid JSON report: %v\n%s", err, stdout)
		}
		if got.Report == nil || got.Report.HasFailures() {
			t.Fatalf("unexpected report %+v", got.Report)
		}
		if outputs := got.Report.Outputs(); len(outputs) != 1 || outputs[0] != pdf {
			t.Errorf("unexpected outputs %v", outputs)
		}
		if got.Report.Pages.Total != 2 {
			t.Errorf("expected 2 pages, got %d", got.Report.Pages.Total)
		}
		if _, err := os.Stat(pdf); err != nil {
			t.Errorf("expected the PDF written: %v", err)
		}
	})

	t.Run("writes a Markdown report file", func(t *testing.T) {
		t.Parallel()

		reportPath := filepath.Join(t.TempDir(), "reports", "run.md")
		args := append([]string{"process",
			"--config", writeTestConfig(t),
			"--session-root", t.TempDir(),
			"-s", "negate",
			"-m", "-o", reportPath,
		}, writeScans(t, 1)...)

		stdout, _, err := execute(t, args...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}
		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "# scantpaper Processing Report") {
			t.Errorf("unexpected report\n%s", content)
		}
	})

	t.Run("requires input images", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "process", "--config", writeTestConfig(t), "-s", "negate")
		if err == nil || !strings.Contains(err.Error(), "no input images") {
			t.Errorf("expected an input error, got %v", err)
		}
	})

	t.Run("rejects a malformed step", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "process", "--config", writeTestConfig(t), "-s", "rotate:sideways", "a.png")
		if !errors.Is(err, app.ErrInvalidStep) {
			t.Errorf("expected ErrInvalidStep, got %v", err)
		}
	})

	t.Run("rejects conflicting report formats", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "process", "--config", writeTestConfig(t), "-j", "-m", "a.png")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "process", "--config", filepath.Join(t.TempDir(), "none.yaml"), "a.png")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestSessionCmd keeps a session, lists it and restores it.
func TestSessionCmd(t *testing.T) {
	t.Parallel()

	cfgPath := writeTestConfig(t)
	root := t.TempDir()

	stdout, stderr, err := execute(t, append([]string{"process",
		"--config", cfgPath, "--session-root", root, "-s", "rotate:180", "-k",
	}, writeScans(t, 2)...)...)
	if err != nil {
		t.Fatalf("process: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "SCANTPAPER PROCESSING REPORT") {
		t.Errorf("expected the plain report, got %q", stdout)
	}
	if !strings.Contains(stderr, "Session kept in ") {
		t.Fatalf("expected the session kept, got %q", stderr)
	}

	stdout, _, err = execute(t, "session", "list", "--config", cfgPath, "--session-root", root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	fields := strings.Fields(stdout)
	if len(fields) != 3 {
		t.Fatalf("expected one session line, got %q", stdout)
	}
	dir := fields[2]

	pdf := filepath.Join(t.TempDir(), "restored.pdf")
	_, stderr, err = execute(t, "session", "restore", dir, "--config", cfgPath,
		"-s", "save-pdf:"+pdf, "--keep-session=false", "--json")
	if err != nil {
		t.Fatalf("restore: %v\n%s", err, stderr)
	}
	if _, err := os.Stat(pdf); err != nil {
		t.Errorf("expected the PDF written: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("expected the session removed")
	}

	stdout, _, err = execute(t, "session", "list", "--config", cfgPath, "--session-root", root)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "No sessions in ") {
		t.Errorf("expected no sessions, got %q", stdout)
	}
}

// TestDepsCmd tests the dependency table.
func TestDepsCmd(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "tools:\n  tesseract: /nonexistent/bin/tesseract\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("plain table", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "deps", "--config", cfgPath, "tesseract")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"TOOL", "tesseract", "missing", "needed for OCR", "1 tool(s) missing"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q\n%s", want, stdout)
			}
		}
	})

	t.Run("markdown table", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "deps", "--config", cfgPath, "-m", "tesseract")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "## External tools") || !strings.Contains(stdout, "Used for") {
			t.Errorf("unexpected markdown\n%s", stdout)
		}
	})
}
