package hocr

import (
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/scantpaper/internal/model"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN"
    "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head>
  <title></title>
  <meta name='ocr-system' content='tesseract 5.3.0' />
 </head>
 <body>
  <div class='ocr_page' id='page_1' title='image "in.png"; bbox 0 0 2480 3508; ppageno 0'>
   <div class='ocr_carea' id='block_1_1' title="bbox 210 300 900 360">
    <p class='ocr_par' id='par_1_1' lang='eng' title="bbox 210 300 900 360">
     <span class='ocr_line' id='line_1_1' title="bbox 210 300 900 360; baseline 0 -8">
      <span class='ocrx_word' id='word_1_1' title='bbox 210 300 480 360; x_wconf 96'>Invoice</span>
      <span class='ocrx_word' id='word_1_2' title='bbox 520 300 900 360; x_wconf 88'><strong>2025-001</strong></span>
      <span class='ocrx_word' id='word_1_3' title='bbox 910 300 920 360; x_wconf 12'> </span>
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestParse(t *testing.T) {
	t.Parallel()

	res, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Page != (model.BoundingBox{X1: 0, Y1: 0, X2: 2480, Y2: 3508}) {
		t.Errorf("unexpected page box %+v", res.Page)
	}
	if res.Lang != "en" {
		t.Errorf("expected lang en, got %q", res.Lang)
	}
	if len(res.Words) != 2 {
		t.Fatalf("expected 2 words (blank word skipped), got %d", len(res.Words))
	}

	first := res.Words[0]
	if first.Text != "Invoice" || first.Confidence != 96 {
		t.Errorf("unexpected first word %+v", first)
	}
	if first.BBox != (model.BoundingBox{X1: 210, Y1: 300, X2: 480, Y2: 360}) {
		t.Errorf("unexpected first bbox %+v", first.BBox)
	}
	if res.Words[1].Text != "2025-001" {
		t.Errorf("expected nested markup to be flattened, got %q", res.Words[1].Text)
	}
}

func TestParseWithoutPage(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	if !errors.Is(err, ErrNoPage) {
		t.Errorf("expected ErrNoPage, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	props := Title(`bbox 1 2 3 4; x_wconf 91;; baseline 0.01 -5`)
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %v", props)
	}
	if strings.Join(props["baseline"], " ") != "0.01 -5" {
		t.Errorf("unexpected baseline %v", props["baseline"])
	}
}

func TestBbox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  model.BoundingBox
		ok    bool
	}{
		{"bbox 10 20 30 40", model.BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 40}, true},
		{"x_wconf 3; bbox 1 1 2 2", model.BoundingBox{X1: 1, Y1: 1, X2: 2, Y2: 2}, true},
		{"bbox 1 2 3", model.BoundingBox{}, false},
		{"bbox a b c d", model.BoundingBox{}, false},
		{"", model.BoundingBox{}, false},
	}
	for _, tt := range tests {
		got, ok := Bbox(tt.title)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Bbox(%q) = %+v, %v; want %+v, %v", tt.title, got, ok, tt.want, tt.ok)
		}
	}
}
