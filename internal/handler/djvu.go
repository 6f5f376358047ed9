package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
)

const (
	toolC44     = "c44"
	toolDjvm    = "djvm"
	toolDjvused = "djvused"
)

// SaveDjVu writes the target pages into a bundled DjVu document: c44
// encodes each page, djvm bundles them and djvused adds the metadata and
// the hidden text layers. DjVu has no encryption, so a user password is
// ignored.
type SaveDjVu struct{ env *Env }

func (*SaveDjVu) Name() string       { return OpSaveDjVu }
func (*SaveDjVu) Requires() []string { return []string{toolC44, toolDjvm, toolDjvused} }

func (h *SaveDjVu) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	ex, err := h.env.prepareExport(req, ".djvu")
	if err != nil {
		return nil, err
	}
	if ex.opts.UserPassword != "" {
		h.env.logger().Warn("DjVu does not support passwords, saving without one", "path", ex.path)
	}
	if err := h.env.checkSpace(filepath.Dir(ex.path), req.Pages); err != nil {
		return nil, err
	}

	dir, err := h.env.Workspace.NewDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	var (
		pages  []string
		script strings.Builder
		errs   []error
	)
	script.WriteString("select; set-meta " + filepath.Join(dir, "meta.txt") + "\n")
	for i, p := range req.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Report(float64(i)/float64(len(req.Pages)), "encoding page %d of %d", i+1, len(req.Pages))
		file, err := h.encodePage(ctx, dir, i, p)
		if err != nil {
			// a subprocess failure is per page; anything else is fatal
			if !errors.Is(err, model.ErrSubprocessFailure) {
				return nil, fmt.Errorf("page %d: %w", i+1, err)
			}
			errs = append(errs, fmt.Errorf("page %d: %w", i+1, err))
			continue
		}
		pages = append(pages, file)
		if p.HasText() {
			txt := filepath.Join(dir, fmt.Sprintf("text%d.txt", i))
			if err := os.WriteFile(txt, []byte(djvuText(p)), 0o600); err != nil {
				return nil, err
			}
			fmt.Fprintf(&script, "select %d; set-txt %s\n", len(pages), txt)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.txt"), []byte(djvuMeta(ex.meta, h.env)), 0o600); err != nil {
		return nil, err
	}
	scriptFile := filepath.Join(dir, "script.djvused")
	if err := os.WriteFile(scriptFile, []byte(script.String()), 0o600); err != nil {
		return nil, err
	}

	req.Report(1, "writing %s", filepath.Base(ex.path))
	err = writeAtomic(ex.path, func(tmp string) error {
		if _, err := h.env.run(ctx, toolDjvm, append([]string{"-c", tmp}, pages...)...); err != nil {
			return err
		}
		_, err := h.env.run(ctx, toolDjvused, "-f", scriptFile, "-s", tmp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved(req.Pages, ex.path), nil
}

func (h *SaveDjVu) encodePage(ctx context.Context, dir string, i int, p model.Page) (string, error) {
	in, err := h.env.workingCopy(p, imageops.FormatPNM)
	if err != nil {
		return "", err
	}
	defer os.Remove(in)

	out := filepath.Join(dir, fmt.Sprintf("page%d.djvu", i))
	dpi := strconv.Itoa(max(int(p.XResolution+0.5), 1))
	if _, err := h.env.run(ctx, toolC44, "-dpi", dpi, in, out); err != nil {
		return "", err
	}
	return out, nil
}

// djvuText renders the text layer as a djvused page expression. DjVu
// coordinates start at the bottom left.
func djvuText(p model.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(page 0 0 %d %d\n", p.Width, p.Height)
	for _, f := range p.Text {
		if f.BBox.Empty() {
			continue
		}
		fmt.Fprintf(&b, " (word %d %d %d %d %s)\n",
			f.BBox.X1, p.Height-f.BBox.Y2, f.BBox.X2, p.Height-f.BBox.Y1, djvuQuote(f.Text))
	}
	b.WriteString(")\n")
	return b.String()
}

func djvuMeta(meta model.Metadata, env *Env) string {
	created := meta.DateTime
	if created.IsZero() {
		created = env.now()
	}
	var b strings.Builder
	for _, kv := range [][2]string{
		{"Title", meta.Title},
		{"Author", meta.Author},
		{"Subject", meta.Subject},
		{"Keywords", meta.Keywords},
		{"CreationDate", created.Format("2006-01-02T15:04:05Z07:00")},
		{"Producer", "scantpaper"},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%s %s\n", kv[0], djvuQuote(kv[1]))
		}
	}
	return b.String()
}

func djvuQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
