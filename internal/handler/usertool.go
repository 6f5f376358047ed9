package handler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/scantpaper/internal/document"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/pipeline"
	"github.com/nao1215/scantpaper/internal/tool"
)

// UserDefinedParams name the command to run.
type UserDefinedParams struct {
	// Tool is the name of a configured user tool.
	Tool string

	// Command is an explicit command template; it wins over Tool.
	Command string
}

// UserDefined runs a user-supplied command template on each page. In the
// template %i is replaced by the input image, %o by the output image and
// %r by the page resolution. Without %o the command is expected to edit
// %i in place; it then works on a copy of the page image.
type UserDefined struct{ env *Env }

func (*UserDefined) Name() string       { return OpUserDefined }
func (*UserDefined) Requires() []string { return nil }

func (h *UserDefined) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Outcome, error) {
	params, err := paramsOf[UserDefinedParams](req)
	if err != nil {
		return nil, err
	}
	template := params.Command
	if template == "" && req.Config != nil && req.Config.Settings != nil {
		template = req.Config.Settings.UserTools[params.Tool]
	}
	if len(strings.Fields(template)) == 0 {
		return nil, &model.ParameterError{Name: "tool", Value: params.Tool, Reason: "no command configured"}
	}
	return eachPage(ctx, req, "running tool on", func(p model.Page) ([]document.Change, error) {
		return h.runTemplate(ctx, p, template)
	})
}

func (h *UserDefined) runTemplate(ctx context.Context, p model.Page, template string) ([]document.Change, error) {
	in, err := h.env.Workspace.NewFile(extOf(p.ImagePath))
	if err != nil {
		return nil, err
	}
	if err := copyFile(p.ImagePath, in); err != nil {
		return nil, err
	}

	out := in
	inPlace := !strings.Contains(template, "%o")
	if !inPlace {
		if out, err = h.env.Workspace.NewFile(extOf(p.ImagePath)); err != nil {
			return nil, err
		}
		defer os.Remove(in)
	}

	r := strings.NewReplacer("%i", in, "%o", out, "%r", strconv.Itoa(int(p.XResolution+0.5)))
	fields := strings.Fields(template)
	argv := make([]string, len(fields))
	for i, f := range fields {
		argv[i] = r.Replace(f)
	}

	if _, err := h.env.Runner.Run(ctx, tool.Command{Tool: argv[0], Args: argv[1:], Dir: h.env.Workspace.Dir()}); err != nil {
		_ = os.Remove(out)
		return nil, err
	}

	next, err := probeInto(out, p.WithImage("", "", 0, 0))
	if err != nil {
		return nil, err
	}
	if next.Width != p.Width || next.Height != p.Height {
		next.Text = nil
	}
	return []document.Change{replace(p, next)}, nil
}

func extOf(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".png"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // page images live in the session directory
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst) //nolint:gosec // dst is inside the session directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
