package handler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nao1215/scantpaper/internal/imageops"
	"github.com/nao1215/scantpaper/internal/model"
	"github.com/nao1215/scantpaper/internal/tool"
)

const testHOCR = `<html xmlns="http://www.w3.org/1999/xhtml">
 <body>
  <div class='ocr_page' id='page_1' title='bbox 0 0 8 6'>
   <span class='ocr_line' id='line_1_1' title='bbox 0 0 8 3'>
    <span class='ocrx_word' id='word_1_1' title='bbox 0 0 4 3; x_wconf 91'>Total</span>
    <span class='ocrx_word' id='word_1_2' title='bbox 5 0 8 3; x_wconf 85'>42</span>
   </span>
  </div>
 </body>
</html>`

func writePNMFile(path string, w, h int) error {
	f, err := os.Create(path) //nolint:gosec // test file
	if err != nil {
		return err
	}
	if err := imageops.EncodePNM(f, grey(w, h)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func TestConvertHandlers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		run     func(env *Env, p model.Page) error
		wantArg []string
	}{
		{
			name: "brightness-contrast",
			run: func(env *Env, p model.Page) error {
				_, err := (&BrightnessContrast{env: env}).Do(context.Background(),
					request(BrightnessContrastParams{Brightness: 60, Contrast: 45}, p))
				return err
			},
			wantArg: []string{"-brightness-contrast", "20x-10"},
		},
		{
			name: "unsharp",
			run: func(env *Env, p model.Page) error {
				_, err := (&Unsharp{env: env}).Do(context.Background(),
					request(UnsharpParams{Radius: 2, Sigma: 1, Percent: 150, Threshold: 5}, p))
				return err
			},
			wantArg: []string{"-unsharp", "2x1+1.5+0.05"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{}
			env := newTestEnv(t, runner)
			runner.fn = func(cmd tool.Command) error {
				return writePNG(t, cmd.Args[len(cmd.Args)-1], 8, 6)
			}
			p := newTestPage(t, env, 8, 6, 300, 300)

			if err := tt.run(env, p); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cmd := runner.commands()[0]
			if cmd.Tool != toolConvert || cmd.Args[0] != p.ImagePath {
				t.Errorf("unexpected command %s %v", cmd.Tool, cmd.Args)
			}
			if got := cmd.Args[1 : len(cmd.Args)-1]; !reflect.DeepEqual(got, tt.wantArg) {
				t.Errorf("expected args %v, got %v", tt.wantArg, got)
			}
			if cmd.Dir != env.Workspace.Dir() {
				t.Errorf("expected the tool to run in the session directory, got %s", cmd.Dir)
			}
		})
	}

	t.Run("tool failure leaves no output", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		env := newTestEnv(t, runner)
		var out string
		runner.fn = func(cmd tool.Command) error {
			out = cmd.Args[len(cmd.Args)-1]
			return &model.SubprocessError{Tool: cmd.Tool, ExitCode: 1}
		}
		p := newTestPage(t, env, 4, 4, 300, 300)

		_, err := (&Unsharp{env: env}).Do(context.Background(), request(nil, p))
		if !errors.Is(err, model.ErrSubprocessFailure) {
			t.Fatalf("expected ErrSubprocessFailure, got %v", err)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", out)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeRunner{})
		p := newTestPage(t, env, 4, 4, 300, 300)
		_, err := (&BrightnessContrast{env: env}).Do(context.Background(),
			request(BrightnessContrastParams{Brightness: 101, Contrast: 50}, p))
		if !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestUnpaper(t *testing.T) {
	t.Parallel()

	t.Run("double page in right-to-left order", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		env := newTestEnv(t, runner)
		runner.fn = func(cmd tool.Command) error {
			dir := filepath.Dir(cmd.Args[len(cmd.Args)-1])
			if err := writePNMFile(filepath.Join(dir, "out1.pnm"), 6, 10); err != nil {
				return err
			}
			return writePNMFile(filepath.Join(dir, "out2.pnm"), 4, 10)
		}
		p := withText(newTestPage(t, env, 10, 10, 300, 300))

		out, err := (&Unpaper{env: env}).Do(context.Background(),
			request(UnpaperParams{Direction: "rtl", OutputPages: 2}, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		args := strings.Join(runner.commands()[0].Args, " ")
		if !strings.Contains(args, "--output-pages 2") || !strings.Contains(args, "--layout double") {
			t.Errorf("unexpected args %s", args)
		}

		if len(out.Changes) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(out.Changes))
		}
		first, second := out.Changes[0].After, out.Changes[1]
		if first.UUID != p.UUID || first.Width != 4 || first.HasText() {
			t.Errorf("expected the right sheet first with the page's UUID, got %+v", *first)
		}
		if second.Anchor != p.UUID || second.After.Width != 6 || second.After.XResolution != 300 {
			t.Errorf("expected the left sheet after it, got %+v", *second.After)
		}
		if filepath.Ext(first.ImagePath) != ".png" {
			t.Errorf("expected the result stored as PNG, got %s", first.ImagePath)
		}
	})

	t.Run("configured options", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		env := newTestEnv(t, runner)
		runner.fn = func(cmd tool.Command) error {
			return writePNMFile(cmd.Args[len(cmd.Args)-1], 5, 5)
		}
		p := newTestPage(t, env, 5, 5, 300, 300)
		req := request(nil, p)
		req.Config.Settings.Unpaper.Options = []string{"--no-deskew"}

		if _, err := (&Unpaper{env: env}).Do(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cmd := runner.commands()[0]
		if cmd.Args[0] != "--no-deskew" || filepath.Ext(cmd.Args[len(cmd.Args)-2]) != ".pnm" {
			t.Errorf("unexpected args %v", cmd.Args)
		}
	})

	t.Run("bad output pages", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeRunner{})
		p := newTestPage(t, env, 5, 5, 300, 300)
		_, err := (&Unpaper{env: env}).Do(context.Background(), request(UnpaperParams{OutputPages: 3}, p))
		if !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestOCR(t *testing.T) {
	t.Parallel()

	t.Run("stores words and returns text", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		env := newTestEnv(t, runner)
		runner.fn = func(cmd tool.Command) error {
			return os.WriteFile(cmd.Args[1]+".hocr", []byte(testHOCR), 0o600)
		}
		p := newTestPage(t, env, 8, 6, 300, 300)

		out, err := (&OCR{env: env}).Do(context.Background(), request(OCRParams{Language: "deu"}, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cmd := runner.commands()[0]
		if cmd.Tool != toolTesseract || cmd.Args[0] != p.ImagePath || cmd.Args[3] != "deu" {
			t.Errorf("unexpected command %s %v", cmd.Tool, cmd.Args)
		}
		next := out.Changes[0].After
		if next.ImagePath != p.ImagePath || next.Digest != p.Digest {
			t.Error("expected the page image to be unchanged")
		}
		if len(next.Text) != 2 || next.Text[0].Text != "Total" || next.Text[0].Confidence != 91 {
			t.Errorf("unexpected text %+v", next.Text)
		}
		if next.ModifiedSinceOCR() {
			t.Error("expected a fresh text layer")
		}
		if texts, _ := out.Value.([]string); len(texts) != 1 || texts[0] != "Total 42" {
			t.Errorf("unexpected value %v", out.Value)
		}
	})

	t.Run("threshold works on a copy", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{}
		env := newTestEnv(t, runner)
		runner.fn = func(cmd tool.Command) error {
			return os.WriteFile(cmd.Args[1]+".hocr", []byte(testHOCR), 0o600)
		}
		p := newTestPage(t, env, 8, 6, 300, 300)

		out, err := (&OCR{env: env}).Do(context.Background(),
			request(OCRParams{Threshold: true, ThresholdValue: 40}, p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		input := runner.commands()[0].Args[0]
		if input == p.ImagePath {
			t.Error("expected tesseract to read a thresholded copy")
		}
		if _, err := os.Stat(input); !os.IsNotExist(err) {
			t.Error("expected the copy to be removed")
		}
		if got, _ := imageops.Digest(p.ImagePath); got != p.Digest || out.Changes[0].After.Digest != p.Digest {
			t.Error("expected the page image to be unchanged")
		}
	})

	t.Run("missing hOCR output", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeRunner{})
		p := newTestPage(t, env, 8, 6, 300, 300)
		if _, err := (&OCR{env: env}).Do(context.Background(), request(nil, p)); err == nil {
			t.Error("expected an error when tesseract writes nothing")
		}
	})

	t.Run("unsupported engine", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeRunner{})
		p := newTestPage(t, env, 8, 6, 300, 300)
		req := request(nil, p)
		req.Config.Settings.OCR.Engine = "cuneiform"
		if _, err := (&OCR{env: env}).Do(context.Background(), req); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}
