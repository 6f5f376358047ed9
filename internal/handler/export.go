package handler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

// ExportParams are the parameters of save-pdf and save-djvu. Nil
// Metadata and Options use the configuration.
type ExportParams struct {
	// Path is the output file. An empty path or a directory gets a name
	// built from the configured filename pattern.
	Path string

	Metadata *model.Metadata
	Options  *model.ExportOptions
}

type export struct {
	path string
	meta model.Metadata
	opts model.ExportOptions
}

// spaceMargin is added to the estimated output size.
const spaceMargin = 1 << 20

func (e *Env) prepareExport(req *pipeline.Request, ext string) (export, error) {
	params, err := paramsOf[ExportParams](req)
	if err != nil {
		return export{}, err
	}
	if len(req.Pages) == 0 {
		return export{}, &model.ParameterError{Name: "pages", Value: 0, Reason: "nothing to export"}
	}

	ex := export{opts: model.DefaultExportOptions()}
	pattern := "%Da %Dt"
	convertWhitespace := false
	if req.Config != nil && req.Config.Settings != nil {
		s := req.Config.Settings
		ex.meta = s.Metadata
		ex.opts = s.Export.ExportOptions
		if s.Export.FilenamePattern != "" {
			pattern = s.Export.FilenamePattern
		}
		convertWhitespace = s.Export.ConvertWhitespace
	}
	if params.Metadata != nil {
		ex.meta = *params.Metadata
	}
	if params.Options != nil {
		ex.opts = *params.Options
	}
	if err := ex.opts.Validate(); err != nil {
		return export{}, err
	}

	ex.path = params.Path
	if ex.path == "" {
		ex.path = "."
	}
	if st, err := os.Stat(ex.path); err == nil && st.IsDir() {
		ex.path = filepath.Join(ex.path, model.ExpandFilename(pattern, ex.meta, e.now(), convertWhitespace)+ext)
	} else if filepath.Ext(ex.path) == "" {
		ex.path += ext
	}
	return ex, nil
}

// checkSpace fails fast when the output directory cannot hold roughly
// the size of the page images.
func (e *Env) checkSpace(dir string, pages []model.Page) error {
	need := uint64(spaceMargin)
	for _, p := range pages {
		if st, err := os.Stat(p.ImagePath); err == nil {
			need += uint64(st.Size())
		}
	}
	free, err := e.Workspace.FreeSpaceAt(dir)
	if err != nil {
		e.logger().Warn("cannot determine free space", "dir", dir, "error", err)
		return nil
	}
	if free < need {
		return fmt.Errorf("%w: %s has %d bytes free, about %d needed", model.ErrInsufficientSpace, dir, free, need)
	}
	return nil
}

// writeAtomic lets write produce the output under a temporary name in the
// target directory and renames it into place only if write succeeds. No
// file is left at either name on failure.
func writeAtomic(path string, write func(tmp string) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// saved marks the exported pages as saved. It is bookkeeping and is kept
// out of the undo history.
func saved(pages []model.Page, path string) *pipeline.Outcome {
	out := &pipeline.Outcome{Output: path, NoHistory: true}
	for _, p := range pages {
		if !p.Dirty() {
			continue
		}
		out.Changes = append(out.Changes, document.Change{Before: &p, After: ptr(p.MarkSaved())})
	}
	return out
}

func ptr[T any](v T) *T { return &v }
