package model

import (
	"testing"
)

func TestNewPage(t *testing.T) {
	t.Parallel()

	p := NewPage("/tmp/a.png", 100, 200, 300, 300)
	q := NewPage("/tmp/a.png", 100, 200, 300, 300)

	if p.UUID == q.UUID {
		t.Error("expected distinct UUIDs for distinct pages")
	}
	if p.Version != 1 {
		t.Errorf("expected version 1, got %d", p.Version)
	}
	if !p.Dirty() {
		t.Error("expected a new page to be dirty")
	}
	if p.ModifiedSinceOCR() {
		t.Error("expected a page without OCR not to be modified since OCR")
	}
}

func TestPageDerivedStates(t *testing.T) {
	t.Parallel()

	base := NewPage("/s/1.png", 100, 200, 300, 300)
	text := []TextFragment{{Text: "hello", BBox: BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 12}, Confidence: 91}}

	t.Run("WithText records the OCR version", func(t *testing.T) {
		t.Parallel()
		p := base.WithText(text)
		if p.UUID != base.UUID {
			t.Error("expected UUID to be kept")
		}
		if !p.HasText() {
			t.Error("expected text layer")
		}
		if p.ModifiedSinceOCR() {
			t.Error("expected fresh OCR not to be modified")
		}
	})

	t.Run("WithImage keeps text but flags it", func(t *testing.T) {
		t.Parallel()
		p := base.WithText(text).WithImage("/s/2.png", "d", 100, 200)
		if !p.HasText() {
			t.Error("expected text layer to be kept")
		}
		if !p.ModifiedSinceOCR() {
			t.Error("expected page to be modified since OCR")
		}
	})

	t.Run("WithGeometry drops text", func(t *testing.T) {
		t.Parallel()
		p := base.WithText(text).WithGeometry("/s/2.png", "d", 200, 100)
		if p.HasText() {
			t.Error("expected text layer to be dropped")
		}
		if p.Width != 200 || p.Height != 100 {
			t.Errorf("expected 200x100, got %dx%d", p.Width, p.Height)
		}
	})

	t.Run("derivation does not touch the original", func(t *testing.T) {
		t.Parallel()
		orig := base.WithText(text)
		derived := orig.Clone()
		derived.Text[0].Text = "changed"
		if orig.Text[0].Text != "hello" {
			t.Error("expected clone not to share the text slice")
		}
	})

	t.Run("MarkSaved clears dirty without a version bump", func(t *testing.T) {
		t.Parallel()
		p := base.MarkSaved()
		if p.Dirty() {
			t.Error("expected saved page not to be dirty")
		}
		if p.Version != base.Version {
			t.Errorf("expected version %d, got %d", base.Version, p.Version)
		}
	})

	t.Run("WithoutText resets OCR state", func(t *testing.T) {
		t.Parallel()
		p := base.WithText(text).WithoutText()
		if p.HasText() || p.OCRVersion != 0 {
			t.Error("expected text and OCR version to be cleared")
		}
	})
}

func TestPagePlainText(t *testing.T) {
	t.Parallel()

	p := Page{Text: []TextFragment{{Text: "one"}, {Text: "two"}, {Text: "three"}}}
	if got := p.PlainText(); got != "one two three" {
		t.Errorf("expected %q, got %q", "one two three", got)
	}
}

func TestPageSizeInPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		page  Page
		wantW float64
		wantH float64
	}{
		{"A4 at 300 dpi", Page{Width: 2480, Height: 3508, XResolution: 300, YResolution: 300}, 595.2, 841.92},
		{"missing resolution is 72 dpi", Page{Width: 100, Height: 50}, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, h := tt.page.SizeInPoints()
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("expected %vx%v, got %vx%v", tt.wantW, tt.wantH, w, h)
			}
		})
	}
}

func TestBoundingBox(t *testing.T) {
	t.Parallel()

	b := BoundingBox{X1: 10, Y1: 20, X2: 40, Y2: 25}
	if b.Width() != 30 || b.Height() != 5 {
		t.Errorf("expected 30x5, got %dx%d", b.Width(), b.Height())
	}
	if b.Empty() {
		t.Error("expected non-empty box")
	}
	if !(BoundingBox{X1: 5, X2: 5, Y2: 9}).Empty() {
		t.Error("expected zero-width box to be empty")
	}
}
