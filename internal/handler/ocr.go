package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/hocr"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

const toolTesseract = "tesseract"

// OCRParams override the configured OCR settings.
type OCRParams struct {
	// Language is the tesseract language, e.g. "eng" or "deu+eng".
	// Empty uses the configuration.
	Language string

	// Threshold binarises a working copy before recognition. The page
	// image itself is not changed.
	Threshold bool

	// ThresholdValue is 0-100.
	ThresholdValue int
}

// OCR recognises text with tesseract and stores it as the page's text
// layer. The result value is the plain text of each page in job order.
type OCR struct{ env *Env }

func (*OCR) Name() string       { return OpOCR }
func (*OCR) Requires() []string { return []string{toolTesseract} }

func (h *OCR) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := h.params(req)
	if err != nil {
		return nil, err
	}

	var texts []string
	out, err := eachPage(ctx, req, "recognising text on", func(p model.Page) ([]document.Change, error) {
		words, err := h.recognise(ctx, p, params)
		if err != nil {
			return nil, err
		}
		next := p.WithText(words)
		texts = append(texts, next.PlainText())
		return []document.Change{replace(p, next)}, nil
	})
	if err != nil {
		return nil, err
	}
	out.Value = texts
	return out, nil
}

func (h *OCR) params(req *pipeline.Request) (OCRParams, error) {
	params, err := paramsOf[OCRParams](req)
	if err != nil {
		return params, err
	}
	if req.Config != nil && req.Config.Settings != nil {
		s := req.Config.Settings.OCR
		if s.Engine != "" && s.Engine != toolTesseract {
			return params, &model.ParameterError{Name: "engine", Value: s.Engine, Reason: "only tesseract is supported"}
		}
		if params.Language == "" {
			params.Language = s.Language
		}
		if req.Job.Params == nil {
			params.Threshold = s.Threshold
			params.ThresholdValue = s.ThresholdValue
		}
	}
	if params.Language == "" {
		params.Language = "eng"
	}
	if params.Threshold && (params.ThresholdValue < 0 || params.ThresholdValue > 100) {
		return params, &model.ParameterError{Name: "threshold", Value: params.ThresholdValue, Reason: "must be 0-100"}
	}
	return params, nil
}

func (h *OCR) recognise(ctx context.Context, p model.Page, params OCRParams) ([]model.TextFragment, error) {
	input := p.ImagePath
	if params.Threshold {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		bw, err := imageops.Threshold(img, params.ThresholdValue)
		if err != nil {
			return nil, err
		}
		// the working copy is not attached to the page
		work, err := h.env.storeImage(bw, p)
		if err != nil {
			return nil, err
		}
		defer os.Remove(work.ImagePath)
		input = work.ImagePath
	}

	dir, err := h.env.Workspace.NewDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	base := filepath.Join(dir, "ocr")
	if _, err := h.env.run(ctx, toolTesseract, input, base, "-l", params.Language, "hocr"); err != nil {
		return nil, err
	}
	f, err := os.Open(base + ".hocr") //nolint:gosec // path is inside the session directory
	if err != nil {
		return nil, fmt.Errorf("tesseract wrote no hOCR: %w", err)
	}
	defer f.Close()

	res, err := hocr.Parse(f)
	if err != nil {
		return nil, err
	}
	return res.Words, nil
}
