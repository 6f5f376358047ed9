package handler

import (
	"context"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// RotateParams are the parameters of a rotate job.
type RotateParams struct {
	// Angle is clockwise in degrees and must be a multiple of 90.
	Angle int
}

// Rotate turns pages by a multiple of 90 degrees. A quarter turn swaps the
// page size and resolution. The text layer is dropped.
type Rotate struct{ env *Env }

func (*Rotate) Name() string       { return OpRotate }
func (*Rotate) Requires() []string { return nil }

func (h *Rotate) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[RotateParams](req)
	if err != nil {
		return nil, err
	}
	if params.Angle%90 != 0 {
		return nil, &model.ParameterError{Name: "angle", Value: params.Angle, Reason: "must be a multiple of 90"}
	}
	quarter := (params.Angle/90)%2 != 0

	return eachPage(ctx, req, "rotating", func(p model.Page) ([]document.Change, error) {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		rotated, err := imageops.Rotate(img, params.Angle)
		if err != nil {
			return nil, err
		}
		next := p.WithGeometry("", "", 0, 0)
		if quarter {
			next.XResolution, next.YResolution = p.YResolution, p.XResolution
		}
		next, err = h.env.storeImage(rotated, next)
		if err != nil {
			return nil, err
		}
		return []document.Change{replace(p, next)}, nil
	})
}

// CropParams select the region to keep, in pixels.
type CropParams struct {
	X, Y, Width, Height int
}

// Crop keeps a rectangle of each page. The text layer is dropped.
type Crop struct{ env *Env }

func (*Crop) Name() string       { return OpCrop }
func (*Crop) Requires() []string { return nil }

func (h *Crop) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[CropParams](req)
	if err != nil {
		return nil, err
	}
	return eachPage(ctx, req, "cropping", func(p model.Page) ([]document.Change, error) {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		cropped, err := imageops.Crop(img, params.X, params.Y, params.Width, params.Height)
		if err != nil {
			return nil, err
		}
		next, err := h.env.storeImage(cropped, p.WithGeometry("", "", 0, 0))
		if err != nil {
			return nil, err
		}
		return []document.Change{replace(p, next)}, nil
	})
}

// SplitParams select the cut line.
type SplitParams struct {
	// Direction is imageops.SplitVertical or imageops.SplitHorizontal.
	Direction imageops.SplitDirection

	// Position is the distance of the cut from the left or top edge.
	Position int
}

// Split cuts each page in two. The left or top part keeps the page's UUID;
// the other part becomes a new page inserted right after it. Both parts
// drop the text layer.
type Split struct{ env *Env }

func (*Split) Name() string       { return OpSplit }
func (*Split) Requires() []string { return nil }

func (h *Split) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[SplitParams](req)
	if err != nil {
		return nil, err
	}
	return eachPage(ctx, req, "splitting", func(p model.Page) ([]document.Change, error) {
		img, err := imageops.Load(p.ImagePath)
		if err != nil {
			return nil, err
		}
		a, b, err := imageops.Split(img, params.Direction, params.Position)
		if err != nil {
			return nil, err
		}
		first, err := h.env.storeImage(a, p.WithGeometry("", "", 0, 0))
		if err != nil {
			return nil, err
		}
		second := model.NewPage("", 0, 0, p.XResolution, p.YResolution)
		second.Created = p.Created
		second, err = h.env.storeImage(b, second)
		if err != nil {
			return nil, err
		}
		return []document.Change{replace(p, first), insertAfter(first, second)}, nil
	})
}
