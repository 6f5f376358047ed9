package handler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

const toolUnpaper = "unpaper"

// UnpaperParams override the configured unpaper settings. Zero fields use
// the configuration.
type UnpaperParams struct {
	Options     []string
	Direction   string
	OutputPages int
}

// Unpaper cleans up scans with unpaper. With two output pages a
// double-page scan becomes two pages; in right-to-left direction the right
// sheet comes first. Unpaper deskews and crops, so the text layer is dropped.
type Unpaper struct{ env *Env }

func (*Unpaper) Name() string       { return OpUnpaper }
func (*Unpaper) Requires() []string { return []string{toolUnpaper} }

func (h *Unpaper) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[UnpaperParams](req)
	if err != nil {
		return nil, err
	}
	if req.Config != nil && req.Config.Settings != nil {
		s := req.Config.Settings.Unpaper
		if params.Options == nil {
			params.Options = s.Options
		}
		if params.Direction == "" {
			params.Direction = s.Direction
		}
		if params.OutputPages == 0 {
			params.OutputPages = s.OutputPages
		}
	}
	if params.Direction == "" {
		params.Direction = "ltr"
	}
	if params.OutputPages == 0 {
		params.OutputPages = 1
	}
	if params.OutputPages != 1 && params.OutputPages != 2 {
		return nil, &model.ParameterError{Name: "output pages", Value: params.OutputPages, Reason: "must be 1 or 2"}
	}
	if params.Direction != "ltr" && params.Direction != "rtl" {
		return nil, &model.ParameterError{Name: "direction", Value: params.Direction, Reason: "must be ltr or rtl"}
	}

	return eachPage(ctx, req, "cleaning up", func(p model.Page) ([]document.Change, error) {
		return h.unpaper(ctx, p, params)
	})
}

func (h *Unpaper) unpaper(ctx context.Context, p model.Page, params UnpaperParams) ([]document.Change, error) {
	in, err := h.env.workingCopy(p, imageops.FormatPNM)
	if err != nil {
		return nil, err
	}
	defer os.Remove(in)

	dir, err := h.env.Workspace.NewDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	args := append([]string(nil), params.Options...)
	args = append(args, "--overwrite", "--output-pages", strconv.Itoa(params.OutputPages))
	outputs := []string{filepath.Join(dir, "out.pnm")}
	pattern := outputs[0]
	if params.OutputPages == 2 {
		args = append(args, "--layout", "double")
		pattern = filepath.Join(dir, "out%d.pnm")
		outputs = []string{filepath.Join(dir, "out1.pnm"), filepath.Join(dir, "out2.pnm")}
		if params.Direction == "rtl" {
			outputs[0], outputs[1] = outputs[1], outputs[0]
		}
	}
	args = append(args, in, pattern)
	if _, err := h.env.run(ctx, toolUnpaper, args...); err != nil {
		return nil, err
	}

	var pages []model.Page
	for i, out := range outputs {
		img, err := imageops.Load(out)
		if err != nil {
			return nil, err
		}
		next := p.WithGeometry("", "", 0, 0)
		if i > 0 {
			next = model.NewPage("", 0, 0, p.XResolution, p.YResolution)
			next.Created = p.Created
		}
		next, err = h.env.storeImage(img, next)
		if err != nil {
			return nil, err
		}
		pages = append(pages, next)
	}

	changes := []document.Change{replace(p, pages[0])}
	for i := 1; i < len(pages); i++ {
		changes = append(changes, insertAfter(pages[i-1], pages[i]))
	}
	return changes, nil
}
