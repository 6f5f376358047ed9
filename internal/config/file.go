package config

import (
	"strings"

	"github.com/nao1215/scantpaper/internal/model"
)

// OCRSettings configures the OCR handler.
type OCRSettings struct {
	// Engine is the OCR engine. Only "tesseract" is supported.
	Engine string `yaml:"engine,omitempty"`

	// Language is passed to the engine, e.g. "eng" or "deu+eng".
	Language string `yaml:"language,omitempty"`

	// Threshold binarises a working copy of the page before recognition.
	Threshold bool `yaml:"threshold,omitempty"`

	// ThresholdValue is the threshold in percent, 0-100.
	ThresholdValue int `yaml:"threshold_value,omitempty"`
}

// UnpaperSettings configures the unpaper handler.
type UnpaperSettings struct {
	// Options are extra command line options passed to unpaper.
	Options []string `yaml:"options,omitempty"`

	// Direction is the reading direction, ltr or rtl. It decides which of
	// two output sheets comes first.
	Direction string `yaml:"direction,omitempty"`

	// OutputPages is 1 or 2. With 2 unpaper splits a double-page scan.
	OutputPages int `yaml:"output_pages,omitempty"`
}

// ExportSettings configures save-pdf and save-djvu.
type ExportSettings struct {
	model.ExportOptions `yaml:",inline"`

	// FilenamePattern names the output file, see model.ExpandFilename.
	FilenamePattern string `yaml:"filename_pattern,omitempty"`

	// ConvertWhitespace replaces whitespace in expanded filenames with "_".
	ConvertWhitespace bool `yaml:"convert_whitespace,omitempty"`
}

// File represents the structure of the .scantpaper configuration file.
type File struct {
	// Tools maps tool names (convert, tesseract, unpaper, c44, djvm,
	// djvused) to executable paths. Unlisted tools are looked up in PATH.
	Tools map[string]string `yaml:"tools,omitempty"`

	OCR     OCRSettings     `yaml:"ocr,omitempty"`
	Unpaper UnpaperSettings `yaml:"unpaper,omitempty"`

	// UserTools are named command templates. %i is replaced with the input
	// image, %o with the output image and %r with the resolution.
	UserTools map[string]string `yaml:"user_tools,omitempty"`

	// Metadata holds defaults for exported documents.
	Metadata model.Metadata `yaml:"metadata,omitempty"`

	Export ExportSettings `yaml:"export,omitempty"`
}

// NewFile returns the settings used when no configuration file exists.
func NewFile() *File {
	return &File{
		Tools: make(map[string]string),
		OCR: OCRSettings{
			Engine:         "tesseract",
			Language:       "eng",
			ThresholdValue: 50,
		},
		Unpaper: UnpaperSettings{
			Direction:   "ltr",
			OutputPages: 1,
		},
		UserTools: make(map[string]string),
		Export: ExportSettings{
			ExportOptions:   model.DefaultExportOptions(),
			FilenamePattern: DefaultFilenamePattern,
		},
	}
}

// ToolPath returns the configured executable for a tool, or the tool name
// itself so that it is resolved through PATH.
func (f *File) ToolPath(name string) string {
	if p, ok := f.Tools[name]; ok && p != "" {
		return p
	}
	return name
}

// Validate checks the file settings.
func (f *File) Validate() error {
	if f.OCR.ThresholdValue < 0 || f.OCR.ThresholdValue > 100 {
		return ErrInvalidThreshold
	}
	switch f.Unpaper.Direction {
	case "ltr", "rtl":
	default:
		return ErrInvalidUnpaperDirection
	}
	for _, cmd := range f.UserTools {
		if strings.TrimSpace(cmd) == "" {
			return ErrEmptyUserTool
		}
	}
	return f.Export.Validate()
}
