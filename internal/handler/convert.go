package handler

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

const toolConvert = "convert"

// BrightnessContrastParams are percentages; 50 leaves the page unchanged.
type BrightnessContrastParams struct {
	Brightness int
	Contrast   int
}

// BrightnessContrast adjusts pages with ImageMagick.
type BrightnessContrast struct{ env *Env }

func (*BrightnessContrast) Name() string       { return OpBrightnessContrast }
func (*BrightnessContrast) Requires() []string { return []string{toolConvert} }

func (h *BrightnessContrast) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[BrightnessContrastParams](req)
	if err != nil {
		return nil, err
	}
	if params.Brightness < 0 || params.Brightness > 100 {
		return nil, &model.ParameterError{Name: "brightness", Value: params.Brightness, Reason: "must be 0-100"}
	}
	if params.Contrast < 0 || params.Contrast > 100 {
		return nil, &model.ParameterError{Name: "contrast", Value: params.Contrast, Reason: "must be 0-100"}
	}
	// ImageMagick takes -100..100 with 0 as neutral.
	arg := fmt.Sprintf("%dx%d", 2*(params.Brightness-50), 2*(params.Contrast-50))
	return eachPage(ctx, req, "adjusting", func(p model.Page) ([]document.Change, error) {
		return h.env.convert(ctx, p, "-brightness-contrast", arg)
	})
}

// UnsharpParams follow ImageMagick's -unsharp geometry.
type UnsharpParams struct {
	// Radius in pixels. Zero lets ImageMagick pick one from Sigma.
	Radius float64

	// Sigma is the standard deviation in pixels. Zero means 1.
	Sigma float64

	// Percent is the amount of the difference added back, 0-200.
	Percent int

	// Threshold is the share of the range below which no sharpening
	// happens, 0-100.
	Threshold int
}

// Unsharp sharpens pages with an unsharp mask.
type Unsharp struct{ env *Env }

func (*Unsharp) Name() string       { return OpUnsharp }
func (*Unsharp) Requires() []string { return []string{toolConvert} }

func (h *Unsharp) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[UnsharpParams](req)
	if err != nil {
		return nil, err
	}
	if params.Radius < 0 || params.Radius > 100 {
		return nil, &model.ParameterError{Name: "radius", Value: params.Radius, Reason: "must be 0-100"}
	}
	if params.Percent < 0 || params.Percent > 200 {
		return nil, &model.ParameterError{Name: "percentage", Value: params.Percent, Reason: "must be 0-200"}
	}
	if params.Threshold < 0 || params.Threshold > 100 {
		return nil, &model.ParameterError{Name: "threshold", Value: params.Threshold, Reason: "must be 0-100"}
	}
	sigma := params.Sigma
	if sigma <= 0 {
		sigma = 1
	}
	arg := fmt.Sprintf("%sx%s+%s+%s",
		strconv.FormatFloat(params.Radius, 'f', -1, 64),
		strconv.FormatFloat(sigma, 'f', -1, 64),
		strconv.FormatFloat(float64(params.Percent)/100, 'f', -1, 64),
		strconv.FormatFloat(float64(params.Threshold)/100, 'f', -1, 64))
	return eachPage(ctx, req, "sharpening", func(p model.Page) ([]document.Change, error) {
		return h.env.convert(ctx, p, "-unsharp", arg)
	})
}

// convert runs "convert <page> <args> <new file>" and derives the next
// page state from the output. The text layer is kept.
func (e *Env) convert(ctx context.Context, p model.Page, args ...string) ([]document.Change, error) {
	out, err := e.Workspace.NewFile(".png")
	if err != nil {
		return nil, err
	}
	argv := append([]string{p.ImagePath}, args...)
	argv = append(argv, out)
	if _, err := e.run(ctx, toolConvert, argv...); err != nil {
		_ = os.Remove(out)
		return nil, err
	}
	next, err := probeInto(out, p.WithImage("", "", 0, 0))
	if err != nil {
		return nil, err
	}
	return []document.Change{replace(p, next)}, nil
}
