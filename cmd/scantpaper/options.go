package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/scantpaper/internal/app"
	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/log"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/report"
)

// addRunFlags adds the flags shared by process and session restore.
func addRunFlags(cmd *cobra.Command, keepSession bool) {
	// Processing flags
	cmd.Flags().StringArrayP("step", "s", nil,
		`Operation to run, repeatable and applied in order (e.g. "rotate:90", "ocr:deu", "save-pdf:out.pdf")`)
	cmd.Flags().StringP("range", "r", config.DefaultPageRange,
		"Pages the steps apply to: all, selected or 1")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers(),
		"Number of jobs that may run at the same time")
	cmd.Flags().DurationP("timeout", "t", config.DefaultToolTimeout,
		"Timeout for each external tool run")
	cmd.Flags().Int("history-limit", 0,
		"Maximum number of undo steps (0 means unbounded)")
	cmd.Flags().String("pdf-password", "",
		"User password for saved PDF files")

	// Session flags
	cmd.Flags().BoolP("keep-session", "k", keepSession,
		"Keep the session directory on exit so it can be restored")
	cmd.Flags().String("session-root", "",
		"Directory for session directories (default: XDG cache directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// getBoolFlag reads a bool flag from the command or its parents. A flag
// that is not defined reads as false.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// getStringFlag is getBoolFlag for strings.
func getStringFlag(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// buildConfig creates a Config from the configuration file and the flags
// the command defines.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	// If the user named a config file, it must exist. Otherwise a missing
	// file means defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		settings, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Settings = settings
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	var err error
	if flags.Lookup("workers") != nil {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("timeout") != nil {
		if cfg.ToolTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("history-limit") != nil {
		if cfg.HistoryLimit, err = flags.GetInt("history-limit"); err != nil {
			return nil, err
		}
	}
	if r := getStringFlag(cmd, "range"); r != "" {
		cfg.PageRange = r
	}
	if root := getStringFlag(cmd, "session-root"); root != "" {
		cfg.SessionRoot = root
	}
	if pw := getStringFlag(cmd, "pdf-password"); pw != "" {
		cfg.Settings.Export.UserPassword = pw
	}
	cfg.KeepSession = getBoolFlag(cmd, "keep-session")
	cfg.JSONReport = getBoolFlag(cmd, "json")
	cfg.MarkdownReport = getBoolFlag(cmd, "markdown")
	cfg.ReportFile = getStringFlag(cmd, "output")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogger creates the structured logger for cfg. Sensitive attributes
// such as passwords are masked.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return log.NewSecureLogger(w, log.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
}

// parseSteps parses the --step values in order.
func parseSteps(cmd *cobra.Command) ([]app.Step, error) {
	if cmd.Flags().Lookup("step") == nil {
		return nil, nil
	}
	specs, err := cmd.Flags().GetStringArray("step")
	if err != nil {
		return nil, err
	}
	steps := make([]app.Step, 0, len(specs))
	for _, spec := range specs {
		s, err := app.ParseStep(spec)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// outputReport writes the processing report in the requested format.
func outputReport(cmd *cobra.Command, cfg *config.Config, r *model.Report) error {
	output := cmd.OutOrStdout()
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(r)
	return err
}
