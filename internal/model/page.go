package model

import (
	"time"

	"github.com/google/uuid"
)

// Page is one scanned or imported page.
//
// A Page is treated as an immutable value once it is stored in the document
// list: processing operations derive a new Page with the same UUID and a
// bumped Version, and the old value stays valid for anyone still holding it
// (the undo history in particular). Image files referenced by ImagePath are
// never overwritten; a new content state always writes a new file.
type Page struct {
	// UUID identifies the page for its whole life. Edits keep it.
	UUID uuid.UUID `json:"uuid"`

	// ImagePath is the image file owned by this page state, inside the
	// session directory.
	ImagePath string `json:"image_path"`

	// Digest is the SHA3-256 of the image file, hex encoded.
	Digest string `json:"digest,omitempty"`

	// Width and Height are the pixel dimensions of the image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// XResolution and YResolution are in dots per inch.
	XResolution float64 `json:"x_resolution"`
	YResolution float64 `json:"y_resolution"`

	// Text is the OCR text layer, in reading order.
	Text []TextFragment `json:"text,omitempty"`

	// Annotations are user-added notes and boxes.
	Annotations []Annotation `json:"annotations,omitempty"`

	// Version increments on every content change.
	Version int `json:"version"`

	// OCRVersion is the Version the text layer was recognised from.
	// Zero means OCR never ran on this page.
	OCRVersion int `json:"ocr_version,omitempty"`

	// SavedVersion is the Version last written to an exported document.
	SavedVersion int `json:"saved_version,omitempty"`

	// Created is when the page was scanned or imported.
	Created time.Time `json:"created"`
}

// TextFragment is a recognised word or line with its position on the page.
type TextFragment struct {
	Text string `json:"text"`

	// BBox is in image pixel coordinates.
	BBox BoundingBox `json:"bbox"`

	// Confidence is 0-100 as reported by the OCR engine.
	Confidence float64 `json:"confidence"`
}

// Annotation is a user-added note, optionally anchored to a region.
type Annotation struct {
	Text string      `json:"text"`
	BBox BoundingBox `json:"bbox"`
}

// BoundingBox is a rectangle in pixel coordinates. X2/Y2 are exclusive.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

// NewPage creates the first state of a page with a fresh UUID.
func NewPage(imagePath string, width, height int, xres, yres float64) Page {
	return Page{
		UUID:        uuid.New(),
		ImagePath:   imagePath,
		Width:       width,
		Height:      height,
		XResolution: xres,
		YResolution: yres,
		Version:     1,
		Created:     time.Now(),
	}
}

// Clone returns a deep copy of the page. Slices are not shared.
func (p Page) Clone() Page {
	c := p
	if p.Text != nil {
		c.Text = make([]TextFragment, len(p.Text))
		copy(c.Text, p.Text)
	}
	if p.Annotations != nil {
		c.Annotations = make([]Annotation, len(p.Annotations))
		copy(c.Annotations, p.Annotations)
	}
	return c
}

// WithImage derives the next content state of the page from a new image.
// The UUID is kept, the version is bumped and the text layer is kept as is;
// callers decide whether the text is still valid.
func (p Page) WithImage(imagePath, digest string, width, height int) Page {
	n := p.Clone()
	n.ImagePath = imagePath
	n.Digest = digest
	n.Width = width
	n.Height = height
	n.Version = p.Version + 1
	return n
}

// WithGeometry is WithImage for operations that move pixels around. The text
// layer is pixel-anchored and therefore dropped.
func (p Page) WithGeometry(imagePath, digest string, width, height int) Page {
	n := p.WithImage(imagePath, digest, width, height)
	n.Text = nil
	return n
}

// WithText derives a page state carrying a fresh OCR text layer.
func (p Page) WithText(text []TextFragment) Page {
	n := p.Clone()
	n.Text = text
	n.Version = p.Version + 1
	n.OCRVersion = n.Version
	return n
}

// WithoutText derives a page state with the text layer cleared.
func (p Page) WithoutText() Page {
	n := p.Clone()
	n.Text = nil
	n.Version = p.Version + 1
	n.OCRVersion = 0
	return n
}

// MarkSaved returns the page flagged as exported at its current version.
// This is bookkeeping, not a content change, so Version is untouched.
func (p Page) MarkSaved() Page {
	n := p.Clone()
	n.SavedVersion = p.Version
	return n
}

// Equal compares pages by identity.
func (p Page) Equal(o Page) bool { return p.UUID == o.UUID }

// HasText reports whether the page carries an OCR text layer.
func (p Page) HasText() bool { return len(p.Text) > 0 }

// Dirty reports whether the page changed since it was last exported.
func (p Page) Dirty() bool { return p.Version != p.SavedVersion }

// ModifiedSinceOCR reports whether the content changed after OCR ran.
// Pages that never had OCR are not considered modified.
func (p Page) ModifiedSinceOCR() bool {
	return p.OCRVersion != 0 && p.OCRVersion != p.Version
}

// PlainText joins the text layer into a single string.
func (p Page) PlainText() string {
	n := 0
	for _, f := range p.Text {
		n += len(f.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, f := range p.Text {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, f.Text...)
	}
	return string(buf)
}

// SizeInPoints returns the physical page size in PDF points (1/72 inch).
// A missing resolution is treated as 72 dpi so that one pixel is one point.
func (p Page) SizeInPoints() (float64, float64) {
	xres, yres := p.XResolution, p.YResolution
	if xres <= 0 {
		xres = 72
	}
	if yres <= 0 {
		yres = 72
	}
	return float64(p.Width) * 72 / xres, float64(p.Height) * 72 / yres
}
