package hocr

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/scantpaper/internal/model"
)

// ErrNoPage is returned when the input contains no ocr_page element.
var ErrNoPage = errors.New("hocr: no ocr_page element")

// Result is the recognised content of one page.
type Result struct {
	// Page is the bounding box of the ocr_page element, which is the
	// image size tesseract saw.
	Page model.BoundingBox

	// Words are the ocrx_word elements in document order.
	Words []model.TextFragment

	// Lang is the language recorded on the page or document, if any.
	Lang string
}

// Parse reads an hOCR document. Only the first ocr_page is used; tesseract
// writes one page per run.
func Parse(r io.Reader) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("hocr: %w", err)
	}

	page := find(doc, func(n *html.Node) bool { return hasClass(n, "ocr_page") })
	if page == nil {
		return nil, ErrNoPage
	}

	res := &Result{Lang: lang(page)}
	if bbox, ok := Bbox(attr(page, "title")); ok {
		res.Page = bbox
	}

	var walk func(*html.Node, string)
	walk = func(n *html.Node, inherited string) {
		if l := attr(n, "lang"); l != "" {
			inherited = l
		}
		if res.Lang == "" {
			res.Lang = inherited
		}
		if hasClass(n, "ocrx_word") {
			if w, ok := word(n); ok {
				res.Words = append(res.Words, w)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inherited)
		}
	}
	walk(page, res.Lang)

	return res, nil
}

func word(n *html.Node) (model.TextFragment, bool) {
	text := strings.TrimSpace(textContent(n))
	if text == "" {
		return model.TextFragment{}, false
	}
	title := attr(n, "title")
	bbox, _ := Bbox(title)
	conf := 0.0
	if v := Title(title)["x_wconf"]; len(v) > 0 {
		conf, _ = strconv.ParseFloat(v[0], 64)
	}
	return model.TextFragment{Text: text, BBox: bbox, Confidence: conf}, true
}

// Title splits an hOCR title attribute such as
// "bbox 10 20 110 40; x_wconf 91" into its properties.
func Title(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		props[fields[0]] = fields[1:]
	}
	return props
}

// Bbox extracts the bbox property of a title attribute.
func Bbox(title string) (model.BoundingBox, bool) {
	v := Title(title)["bbox"]
	if len(v) < 4 {
		return model.BoundingBox{}, false
	}
	var n [4]int
	for i := range n {
		f, err := strconv.Atoi(v[i])
		if err != nil {
			return model.BoundingBox{}, false
		}
		n[i] = f
	}
	return model.BoundingBox{X1: n[0], Y1: n[1], X2: n[2], Y2: n[3]}, true
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, match); f != nil {
			return f
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func lang(page *html.Node) string {
	for n := page; n != nil; n = n.Parent {
		if l := attr(n, "lang"); l != "" {
			return l
		}
		if l := attr(n, "xml:lang"); l != "" {
			return l
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
