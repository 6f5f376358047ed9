package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// coreFonts are the fonts every PDF reader provides.
var coreFonts = map[string]bool{
	"courier":   true,
	"helvetica": true,
	"arial":     true,
	"times":     true,
}

// SavePDF writes the target pages, in job order, into one PDF. Pages with
// a text layer get it as invisible text behind the image, or as a visible
// text page after it. A page that fails does not stop the others, but any
// failure means no output file is written.
type SavePDF struct{ env *Env }

func (*SavePDF) Name() string       { return OpSavePDF }
func (*SavePDF) Requires() []string { return nil }

func (h *SavePDF) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	ex, err := h.env.prepareExport(req, ".pdf")
	if err != nil {
		return nil, err
	}
	h.env.logger().Debug("saving PDF",
		"path", ex.path,
		"pages", len(req.Pages),
		"compression", string(ex.opts.Compression),
		"downsample", ex.opts.Downsample,
		"user-password", ex.opts.UserPassword)

	if err := h.env.checkSpace(filepath.Dir(ex.path), req.Pages); err != nil {
		return nil, err
	}

	font := strings.ToLower(ex.opts.Font)
	if !coreFonts[font] {
		h.env.logger().Warn("font is not a PDF core font, using helvetica", "font", ex.opts.Font)
		font = "helvetica"
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(ex.opts.Compression != model.CompressionNone)
	pdf.SetCreator("scantpaper", false)
	setPDFMetadata(pdf, ex.meta, h.env.now())
	if ex.opts.UserPassword != "" {
		pdf.SetProtection(fpdf.CnProtectPrint|fpdf.CnProtectCopy, ex.opts.UserPassword, "")
	}

	var errs []error
	for i, p := range req.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Report(float64(i)/float64(len(req.Pages)), "saving page %d of %d", i+1, len(req.Pages))
		data, kind, err := pdfImage(p, ex.opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", i+1, err))
			continue
		}
		addPDFPage(pdf, i, p, data, kind, font, ex.opts.TextPosition)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}

	req.Report(1, "writing %s", filepath.Base(ex.path))
	if err := writeAtomic(ex.path, pdf.OutputFileAndClose); err != nil {
		return nil, err
	}
	return saved(req.Pages, ex.path), nil
}

func setPDFMetadata(pdf *fpdf.Fpdf, meta model.Metadata, now time.Time) {
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	if meta.Keywords != "" {
		pdf.SetKeywords(meta.Keywords, true)
	}
	created := meta.DateTime
	if created.IsZero() {
		created = now
	}
	pdf.SetCreationDate(created)
}

// pdfImage encodes the page image the way the options ask for and returns
// the bytes and the fpdf image type.
func pdfImage(p model.Page, opts model.ExportOptions) ([]byte, string, error) {
	img, err := imageops.Load(p.ImagePath)
	if err != nil {
		return nil, "", err
	}
	if opts.Downsample && p.XResolution > float64(opts.DownsampleDPI) {
		f := float64(opts.DownsampleDPI) / p.XResolution
		b := img.Bounds()
		img, err = imageops.Scale(img, max(int(float64(b.Dx())*f), 1), max(int(float64(b.Dy())*f), 1))
		if err != nil {
			return nil, "", err
		}
	}
	img = imageops.Depth8(img)

	format := imageops.FormatPNG
	switch opts.Compression {
	case model.CompressionJPEG:
		format = imageops.FormatJPEG
	case model.CompressionAuto:
		switch img.(type) {
		case *image.Gray, *image.Paletted:
		default:
			format = imageops.FormatJPEG
		}
	}

	var buf bytes.Buffer
	if err := imageops.Encode(&buf, img, format, imageops.SaveOptions{Quality: opts.Quality}); err != nil {
		return nil, "", err
	}
	if format == imageops.FormatJPEG {
		return buf.Bytes(), "JPG", nil
	}
	return buf.Bytes(), "PNG", nil
}

func addPDFPage(pdf *fpdf.Fpdf, i int, p model.Page, data []byte, kind, font string, pos model.TextPosition) {
	w, h := p.SizeInPoints()
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	name := fmt.Sprintf("page%d", i)
	opts := fpdf.ImageOptions{ImageType: kind}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")

	if !p.HasText() {
		return
	}
	if pos == model.TextRight {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		pdf.SetFont(font, "", 12)
		pdf.SetXY(36, 36)
		pdf.MultiCell(w-72, 14, latin1(p.PlainText()), "", "L", false)
		return
	}
	drawHiddenText(pdf, p, font)
}

// drawHiddenText places each text fragment, invisible, over its position
// on the page image, sized to the fragment's bounding box.
func drawHiddenText(pdf *fpdf.Fpdf, p model.Page, font string) {
	sx, sy := 1.0, 1.0
	if p.XResolution > 0 {
		sx = 72 / p.XResolution
	}
	if p.YResolution > 0 {
		sy = 72 / p.YResolution
	}

	pdf.SetFont(font, "", 10)
	pdf.SetAlpha(0, "Normal")
	for _, f := range p.Text {
		if f.BBox.Empty() {
			continue
		}
		text := latin1(f.Text)
		size := float64(f.BBox.Height()) * sy
		pdf.SetFontSize(size)
		if sw := pdf.GetStringWidth(text); sw > 0 {
			pdf.SetFontSize(size * float64(f.BBox.Width()) * sx / sw)
		}
		pdf.Text(float64(f.BBox.X1)*sx, float64(f.BBox.Y2)*sy, text)
	}
	pdf.SetAlpha(1, "Normal")
}

// latin1 encodes s for the PDF core fonts. Characters outside latin-1 are
// replaced by "?".
func latin1(s string) string {
	enc := charmap.ISO8859_1.NewEncoder()
	if out, err := enc.String(s); err == nil {
		return out
	}
	var b strings.Builder
	for _, r := range s {
		if e, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			b.WriteByte(e)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
