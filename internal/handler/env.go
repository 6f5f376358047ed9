package handler

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
	"github.com/nao1215/scantpaper/internal/tool"
)

// Workspace is where handlers create files. *session.Session implements it.
type Workspace interface {
	Dir() string
	NewFile(ext string) (string, error)
	NewDir() (string, error)
	FreeSpaceAt(path string) (uint64, error)
}

// Env is what every handler is built with.
type Env struct {
	Workspace Workspace
	Runner    tool.Runner
	Logger    *slog.Logger

	// Now is the clock used for filename patterns. Nil means time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// paramsOf extracts the typed parameters of a job. A nil parameter value
// yields the zero value so handlers can fall back to configured defaults.
func paramsOf[T any](req *pipeline.Request) (T, error) {
	var zero T
	switch p := req.Job.Params.(type) {
	case nil:
		return zero, nil
	case T:
		return p, nil
	case *T:
		if p == nil {
			return zero, nil
		}
		return *p, nil
	}
	return zero, &model.ParameterError{Name: "params", Value: req.Job.Params, Reason: fmt.Sprintf("expected %T", zero)}
}

// replace describes swapping before for after.
func replace(before, after model.Page) document.Change {
	return document.Change{Before: &before, After: &after}
}

// insertAfter describes inserting page after anchor.
func insertAfter(anchor model.Page, page model.Page) document.Change {
	return document.Change{After: &page, Anchor: anchor.UUID}
}

// eachPage runs fn for every target page, reporting progress and stopping
// at the first error or when ctx is cancelled.
func eachPage(ctx context.Context, req *pipeline.Request, verb string, fn func(p model.Page) ([]document.Change, error)) (*pipeline.Outcome, error) {
	out := &pipeline.Outcome{}
	n := len(req.Pages)
	for i, p := range req.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Report(float64(i)/float64(n), "%s page %d of %d", verb, i+1, n)
		changes, err := fn(p)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", p.UUID, err)
		}
		out.Changes = append(out.Changes, changes...)
	}
	return out, nil
}

// storeImage writes img as a new PNG in the workspace and returns page
// with the file, digest and pixel size filled in. The page's resolution is
// recorded in the file.
func (e *Env) storeImage(img image.Image, page model.Page) (model.Page, error) {
	path, err := e.Workspace.NewFile(".png")
	if err != nil {
		return model.Page{}, err
	}
	digest, err := imageops.Save(path, img, imageops.SaveOptions{
		XResolution: page.XResolution,
		YResolution: page.YResolution,
	})
	if err != nil {
		_ = os.Remove(path)
		return model.Page{}, err
	}
	b := img.Bounds()
	page.ImagePath = path
	page.Digest = digest
	page.Width, page.Height = b.Dx(), b.Dy()
	return page, nil
}

// probeInto fills page with the file at path, as written by an external tool.
func probeInto(path string, page model.Page) (model.Page, error) {
	info, err := imageops.Probe(path)
	if err != nil {
		return model.Page{}, err
	}
	page.ImagePath = path
	page.Digest = info.Digest
	page.Width, page.Height = info.Width, info.Height
	return page, nil
}

// workingCopy writes the page image as format into a new workspace file,
// for tools that need a particular input format or modify files in place.
func (e *Env) workingCopy(p model.Page, format imageops.Format) (string, error) {
	img, err := imageops.Load(p.ImagePath)
	if err != nil {
		return "", err
	}
	path, err := e.Workspace.NewFile(format.Extension())
	if err != nil {
		return "", err
	}
	f, err := os.Create(path) //nolint:gosec // path is inside the session directory
	if err != nil {
		return "", err
	}
	err = imageops.Encode(f, img, format, imageops.SaveOptions{XResolution: p.XResolution, YResolution: p.YResolution})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *Env) run(ctx context.Context, name string, args ...string) (*tool.Result, error) {
	return e.Runner.Run(ctx, tool.Command{Tool: name, Args: args, Dir: e.Workspace.Dir()})
}
