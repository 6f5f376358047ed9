package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultToolTimeout bounds a single external tool run. OCR of a
	// 600 dpi A4 page can take a minute on slow hardware, so this is generous.
	DefaultToolTimeout = 5 * time.Minute

	// DefaultResolution is assumed for imported images that carry no
	// resolution of their own.
	DefaultResolution = 300.0

	// DefaultAvailableTmpWarning is the free-space low-water mark of the
	// session directory, in megabytes.
	DefaultAvailableTmpWarning = 300

	// DefaultMaxWorkers caps the worker pool so that several tesseract or
	// unpaper processes do not oversubscribe the machine.
	DefaultMaxWorkers = 4

	// DefaultPageRange is the page range used when none is given.
	DefaultPageRange = "all"

	// DefaultFilenamePattern names exported documents.
	DefaultFilenamePattern = "%Da %Dt"

	// AppName is the application name used for XDG directory paths.
	AppName = "scantpaper"
)

// Config holds all options of a scantpaper run. It is built once from
// flags and the configuration file and then passed down explicitly; no
// package reads settings from global state.
type Config struct {
	// Workers is the number of jobs that may run at the same time.
	// Jobs on the same page are always serialised regardless of this value.
	Workers int

	// ToolTimeout bounds each external tool invocation.
	ToolTimeout time.Duration

	// SessionRoot is the directory under which session directories are
	// created.
	SessionRoot string

	// KeepSession leaves the session directory in place on exit so that it
	// can be restored later.
	KeepSession bool

	// AvailableTmpWarning is the free-space warning threshold in megabytes.
	AvailableTmpWarning int

	// DefaultResolution is used for images without resolution information.
	DefaultResolution float64

	// HistoryLimit caps the undo history. Zero means unbounded.
	HistoryLimit int

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// Settings holds the tool, OCR and export settings from the file.
	Settings *File

	// PageRange selects the pages operations apply to: all, selected or 1.
	PageRange string

	// JSONReport prints the processing report as JSON.
	JSONReport bool

	// MarkdownReport prints the processing report as Markdown.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:             DefaultWorkers(),
		ToolTimeout:         DefaultToolTimeout,
		SessionRoot:         XDGSessionDir(),
		AvailableTmpWarning: DefaultAvailableTmpWarning,
		DefaultResolution:   DefaultResolution,
		PageRange:           DefaultPageRange,
		Settings:            NewFile(),
	}
}

// DefaultWorkers returns min(NumCPU, DefaultMaxWorkers).
func DefaultWorkers() int {
	return min(runtime.NumCPU(), DefaultMaxWorkers)
}

// XDGConfigDir returns the XDG config directory for scantpaper.
// On Linux: ~/.config/scantpaper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for scantpaper.
// On Linux: ~/.cache/scantpaper
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// XDGSessionDir returns the default parent of session directories.
func XDGSessionDir() string {
	return filepath.Join(XDGCacheDir(), "sessions")
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.ToolTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.AvailableTmpWarning < 0 {
		return ErrInvalidTmpWarning
	}
	if c.DefaultResolution <= 0 {
		return ErrInvalidResolution
	}
	if c.HistoryLimit < 0 {
		return ErrInvalidHistoryLimit
	}
	switch c.PageRange {
	case "all", "selected", "1":
	default:
		return ErrInvalidPageRange
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}
