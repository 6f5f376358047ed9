package app

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/scantpaper/internal/handler"
	"github.com/nao1215/scantpaper/internal/imageops"
)

func TestParseStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Step
	}{
		{"rotate", Step{Op: handler.OpRotate, Params: handler.RotateParams{Angle: 90}}},
		{"rotate:270", Step{Op: handler.OpRotate, Params: handler.RotateParams{Angle: 270}}},
		{"crop:10,20,300,400", Step{Op: handler.OpCrop, Params: handler.CropParams{X: 10, Y: 20, Width: 300, Height: 400}}},
		{"split:v,120", Step{Op: handler.OpSplit, Params: handler.SplitParams{Direction: imageops.SplitVertical, Position: 120}}},
		{"threshold", Step{Op: handler.OpThreshold, Params: handler.ThresholdParams{Percent: 50}}},
		{"threshold:65", Step{Op: handler.OpThreshold, Params: handler.ThresholdParams{Percent: 65}}},
		{"brightness-contrast:-10,20", Step{Op: handler.OpBrightnessContrast, Params: handler.BrightnessContrastParams{Brightness: -10, Contrast: 20}}},
		{"unsharp:2,1,150,5", Step{Op: handler.OpUnsharp, Params: handler.UnsharpParams{Radius: 2, Sigma: 1, Percent: 150, Threshold: 5}}},
		{"unpaper", Step{Op: handler.OpUnpaper}},
		{"unpaper:rtl,2", Step{Op: handler.OpUnpaper, Params: handler.UnpaperParams{Direction: "rtl", OutputPages: 2}}},
		{"ocr", Step{Op: handler.OpOCR}},
		{"ocr:deu", Step{Op: handler.OpOCR, Params: handler.OCRParams{Language: "deu"}}},
		{"user-defined:grey", Step{Op: handler.OpUserDefined, Params: handler.UserDefinedParams{Tool: "grey"}}},
		{"save-pdf:/tmp/a,b.pdf", Step{Op: handler.OpSavePDF, Params: handler.ExportParams{Path: "/tmp/a,b.pdf"}}},
		{"save-djvu", Step{Op: handler.OpSaveDjVu, Params: handler.ExportParams{}}},
		{" negate ", Step{Op: handler.OpNegate}},
		{"undo", Step{Op: OpUndo}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStep(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, in := range []string{
		"",
		"rotate:ninety",
		"crop:1,2,3",
		"split:d,10",
		"split:v",
		"unsharp:1,x,2,3",
		"unsharp:1,1,2.5,3",
		"unpaper:ltr,2,3",
		"user-defined",
		"negate:1",
		"scan",
	} {
		t.Run("invalid "+in, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseStep(in); !errors.Is(err, ErrInvalidStep) {
				t.Errorf("expected ErrInvalidStep, got %v", err)
			}
		})
	}
}

func TestStepPerPage(t *testing.T) {
	t.Parallel()

	for op, want := range map[string]bool{
		handler.OpRotate:  true,
		handler.OpOCR:     true,
		handler.OpSavePDF: false,
		handler.OpImport:  false,
	} {
		if got := (Step{Op: op}).perPage(); got != want {
			t.Errorf("perPage(%s) = %v, want %v", op, got, want)
		}
	}
}
