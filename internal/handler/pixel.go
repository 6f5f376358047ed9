package handler

import (
	"context"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// Negate inverts the colours of each page. The text layer is kept and
// becomes stale.
type Negate struct{ env *Env }

func (*Negate) Name() string       { return OpNegate }
func (*Negate) Requires() []string { return nil }

func (h *Negate) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	return eachPage(ctx, req, "negating", func(p model.Page) ([]document.Change, error) {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		next, err := h.env.storeImage(imageops.Negate(img), p.WithImage("", "", p.Width, p.Height))
		if err != nil {
			return nil, err
		}
		return []document.Change{replace(p, next)}, nil
	})
}

// ThresholdParams are the parameters of a threshold job.
type ThresholdParams struct {
	// Percent is 0-100. Pixels lighter than this share of full brightness
	// become white, the rest black.
	Percent int
}

// Threshold binarises each page.
type Threshold struct{ env *Env }

func (*Threshold) Name() string       { return OpThreshold }
func (*Threshold) Requires() []string { return nil }

func (h *Threshold) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[ThresholdParams](req)
	if err != nil {
		return nil, err
	}
	if params.Percent < 0 || params.Percent > 100 {
		return nil, &model.ParameterError{Name: "threshold", Value: params.Percent, Reason: "must be 0-100"}
	}
	return eachPage(ctx, req, "thresholding", func(p model.Page) ([]document.Change, error) {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		bw, err := imageops.Threshold(img, params.Percent)
		if err != nil {
			return nil, err
		}
		next, err := h.env.storeImage(bw, p.WithImage("", "", p.Width, p.Height))
		if err != nil {
			return nil, err
		}
		return []document.Change{replace(p, next)}, nil
	})
}

// ClearOCR removes the text layer of each page that has one.
type ClearOCR struct{}

func (*ClearOCR) Name() string       { return OpClearOCR }
func (*ClearOCR) Requires() []string { return nil }

func (*ClearOCR) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	return eachPage(ctx, req, "clearing text of", func(p model.Page) ([]document.Change, error) {
		if !p.HasText() && p.OCRVersion == 0 {
			return nil, nil
		}
		return []document.Change{replace(p, p.WithoutText())}, nil
	})
}
