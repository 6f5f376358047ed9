package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Metadata is the document information written into an exported file.
type Metadata struct {
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Author   string    `json:"author,omitempty" yaml:"author,omitempty"`
	Subject  string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Keywords string    `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	DateTime time.Time `json:"datetime,omitempty" yaml:"-"`
}

// Compression selects how page images are stored in a PDF.
type Compression string

const (
	// CompressionAuto keeps bilevel and greyscale pages lossless and stores
	// colour pages as JPEG.
	CompressionAuto Compression = "auto"
	// CompressionLossless stores every page as a deflated PNG stream.
	CompressionLossless Compression = "png"
	// CompressionJPEG stores every page as JPEG at the configured quality.
	CompressionJPEG Compression = "jpg"
	// CompressionNone stores page streams uncompressed.
	CompressionNone Compression = "none"
)

// TextPosition controls where the OCR text layer goes in a PDF.
type TextPosition string

const (
	// TextBehind places invisible text under the page image.
	TextBehind TextPosition = "behind"
	// TextRight places the text on a separate page after each image page.
	TextRight TextPosition = "right"
)

// ExportOptions are the save-pdf and save-djvu knobs.
type ExportOptions struct {
	Compression   Compression  `json:"compression" yaml:"compression"`
	Downsample    bool         `json:"downsample" yaml:"downsample"`
	DownsampleDPI int          `json:"downsample_dpi" yaml:"downsample_dpi"`
	Quality       int          `json:"quality" yaml:"quality"`
	TextPosition  TextPosition `json:"text_position" yaml:"text_position"`
	Font          string       `json:"font" yaml:"font"`
	UserPassword  string       `json:"-" yaml:"-"`
}

// DefaultExportOptions returns the options used when nothing is configured.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Compression:   CompressionAuto,
		DownsampleDPI: 150,
		Quality:       75,
		TextPosition:  TextBehind,
		Font:          "Helvetica",
	}
}

// Validate rejects out-of-range options.
func (o ExportOptions) Validate() error {
	switch o.Compression {
	case CompressionAuto, CompressionLossless, CompressionJPEG, CompressionNone:
	default:
		return &ParameterError{Name: "compression", Value: o.Compression, Reason: "unknown compression"}
	}
	if o.Quality < 0 || o.Quality > 100 {
		return &ParameterError{Name: "quality", Value: o.Quality, Reason: "must be 0-100"}
	}
	if o.Downsample && o.DownsampleDPI <= 0 {
		return &ParameterError{Name: "downsample dpi", Value: o.DownsampleDPI, Reason: "must be positive"}
	}
	switch o.TextPosition {
	case TextBehind, TextRight, "":
	default:
		return &ParameterError{Name: "text_position", Value: o.TextPosition, Reason: "must be behind or right"}
	}
	return nil
}

var patternCode = regexp.MustCompile(`%D?[a-zA-Z]`)

// ExpandFilename fills a filename template from the metadata.
//
//	%Da author      %Dt title      %Ds subject      %Dk keywords
//	%DY %Dm %Dd     document date  %DH %DM %DS      document time
//	%Y %m %d        today          %H %M %S         now
//
// Unknown codes are left as they are. A result that is blank falls back to
// "document".
func ExpandFilename(template string, meta Metadata, now time.Time, convertWhitespace bool) string {
	doc := meta.DateTime
	if doc.IsZero() {
		doc = now
	}
	out := patternCode.ReplaceAllStringFunc(template, func(code string) string {
		switch code {
		case "%Da":
			return meta.Author
		case "%Dt":
			return meta.Title
		case "%Ds":
			return meta.Subject
		case "%Dk":
			return meta.Keywords
		case "%DY":
			return fmt.Sprintf("%04d", doc.Year())
		case "%Dm":
			return fmt.Sprintf("%02d", int(doc.Month()))
		case "%Dd":
			return fmt.Sprintf("%02d", doc.Day())
		case "%DH":
			return fmt.Sprintf("%02d", doc.Hour())
		case "%DM":
			return fmt.Sprintf("%02d", doc.Minute())
		case "%DS":
			return fmt.Sprintf("%02d", doc.Second())
		case "%Y":
			return fmt.Sprintf("%04d", now.Year())
		case "%m":
			return fmt.Sprintf("%02d", int(now.Month()))
		case "%d":
			return fmt.Sprintf("%02d", now.Day())
		case "%H":
			return fmt.Sprintf("%02d", now.Hour())
		case "%M":
			return fmt.Sprintf("%02d", now.Minute())
		case "%S":
			return fmt.Sprintf("%02d", now.Second())
		}
		return code
	})
	out = strings.TrimSpace(out)
	if out == "" {
		return "document"
	}
	if convertWhitespace {
		out = strings.Join(strings.Fields(out), "_")
	}
	return out
}
