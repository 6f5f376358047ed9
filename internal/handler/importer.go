package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/config"
	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// ImportParams list the files to import.
type ImportParams struct {
	Paths []string

	// After is the page the imported pages follow. uuid.Nil inserts them
	// at the start of the document.
	After uuid.UUID

	// Append puts the pages after whatever page is last when the import
	// is applied. After is ignored.
	Append bool
}

// Import copies image files into the session and inserts them as new
// pages. PNG and JPEG files are copied byte for byte; PNM files are stored
// as PNG. Files without a recorded resolution get the configured default.
type Import struct{ env *Env }

func (*Import) Name() string       { return OpImport }
func (*Import) Requires() []string { return nil }

func (h *Import) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[ImportParams](req)
	if err != nil {
		return nil, err
	}
	if len(params.Paths) == 0 {
		return nil, &model.ParameterError{Name: "paths", Value: params.Paths, Reason: "nothing to import"}
	}
	dpi := config.DefaultResolution
	if req.Config != nil && req.Config.DefaultResolution > 0 {
		dpi = req.Config.DefaultResolution
	}

	out := &pipeline.Outcome{}
	anchor, appendAt := params.After, params.Append
	for i, path := range params.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Report(float64(i)/float64(len(params.Paths)), "importing %d of %d", i+1, len(params.Paths))
		page, err := h.importFile(path, dpi)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		out.Changes = append(out.Changes, document.Change{After: &page, Anchor: anchor, Append: appendAt})
		anchor, appendAt = page.UUID, false
	}
	return out, nil
}

func (h *Import) importFile(path string, dpi float64) (model.Page, error) {
	info, err := imageops.Probe(path)
	if err != nil {
		return model.Page{}, err
	}
	xres, yres := info.XResolution, info.YResolution
	if xres <= 0 || yres <= 0 {
		xres, yres = dpi, dpi
	}
	page := model.NewPage("", info.Width, info.Height, xres, yres)

	if info.Format == imageops.FormatPNM {
		img, err := imageops.Load(path)
		if err != nil {
			return model.Page{}, err
		}
		return h.env.storeImage(img, page)
	}

	dst, err := h.env.Workspace.NewFile(info.Format.Extension())
	if err != nil {
		return model.Page{}, err
	}
	if err := copyFile(path, dst); err != nil {
		return model.Page{}, err
	}
	page.ImagePath = dst
	page.Digest = info.Digest
	return page, nil
}
