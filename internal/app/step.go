package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/scantpaper/internal/handler"
	"github.com/nao1215/scantpaper/internal/imageops"
)

// Steps that are not handlers.
const (
	OpUndo = "undo"
	OpRedo = "redo"
)

// Step is one operation of a processing run.
type Step struct {
	Op string

	// Params is the handler parameter value. Nil uses the configuration.
	Params any
}

// perPage reports whether the step is submitted as one job per page, so
// that pages are processed in parallel. Exports need every page in one job.
func (s Step) perPage() bool {
	switch s.Op {
	case handler.OpSavePDF, handler.OpSaveDjVu, handler.OpImport:
		return false
	}
	return true
}

// ParseStep reads a step written as "op" or "op:arg,arg".
//
//	rotate[:90|180|270]            crop:x,y,w,h
//	split:v|h,position             threshold[:percent]
//	brightness-contrast:b,c        unsharp:radius,sigma,percent,threshold
//	unpaper[:ltr|rtl[,pages]]      ocr[:language]
//	user-defined:name              negate  clear-ocr  undo  redo
//	save-pdf[:path]                save-djvu[:path]
func ParseStep(spec string) (Step, error) {
	op, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	var args []string
	if arg != "" {
		args = strings.Split(arg, ",")
	}
	bad := func(reason string) (Step, error) {
		return Step{}, fmt.Errorf("%w %q: %s", ErrInvalidStep, spec, reason)
	}
	ints := func(want int) ([]int, bool) {
		if len(args) != want {
			return nil, false
		}
		out := make([]int, want)
		for i, a := range args {
			n, err := strconv.Atoi(strings.TrimSpace(a))
			if err != nil {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	}

	switch op {
	case handler.OpNegate, handler.OpClearOCR, OpUndo, OpRedo:
		if len(args) != 0 {
			return bad("takes no arguments")
		}
		return Step{Op: op}, nil

	case handler.OpRotate:
		if len(args) == 0 {
			return Step{Op: op, Params: handler.RotateParams{Angle: 90}}, nil
		}
		v, ok := ints(1)
		if !ok {
			return bad("expected an angle")
		}
		return Step{Op: op, Params: handler.RotateParams{Angle: v[0]}}, nil

	case handler.OpCrop:
		v, ok := ints(4)
		if !ok {
			return bad("expected x,y,width,height")
		}
		return Step{Op: op, Params: handler.CropParams{X: v[0], Y: v[1], Width: v[2], Height: v[3]}}, nil

	case handler.OpSplit:
		if len(args) != 2 {
			return bad("expected direction,position")
		}
		dir := imageops.SplitDirection(strings.TrimSpace(args[0]))
		if dir != imageops.SplitVertical && dir != imageops.SplitHorizontal {
			return bad("direction must be v or h")
		}
		pos, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return bad("position must be a number")
		}
		return Step{Op: op, Params: handler.SplitParams{Direction: dir, Position: pos}}, nil

	case handler.OpThreshold:
		if len(args) == 0 {
			return Step{Op: op, Params: handler.ThresholdParams{Percent: 50}}, nil
		}
		v, ok := ints(1)
		if !ok {
			return bad("expected a percentage")
		}
		return Step{Op: op, Params: handler.ThresholdParams{Percent: v[0]}}, nil

	case handler.OpBrightnessContrast:
		v, ok := ints(2)
		if !ok {
			return bad("expected brightness,contrast")
		}
		return Step{Op: op, Params: handler.BrightnessContrastParams{Brightness: v[0], Contrast: v[1]}}, nil

	case handler.OpUnsharp:
		if len(args) != 4 {
			return bad("expected radius,sigma,percent,threshold")
		}
		var f [2]float64
		for i := range f {
			n, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64)
			if err != nil {
				return bad("radius and sigma must be numbers")
			}
			f[i] = n
		}
		args = args[2:]
		v, ok := ints(2)
		if !ok {
			return bad("percent and threshold must be whole numbers")
		}
		return Step{Op: op, Params: handler.UnsharpParams{Radius: f[0], Sigma: f[1], Percent: v[0], Threshold: v[1]}}, nil

	case handler.OpUnpaper:
		if len(args) == 0 {
			return Step{Op: op}, nil
		}
		if len(args) > 2 {
			return bad("expected direction[,pages]")
		}
		p := handler.UnpaperParams{Direction: strings.TrimSpace(args[0])}
		if len(args) == 2 {
			n, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return bad("pages must be 1 or 2")
			}
			p.OutputPages = n
		}
		return Step{Op: op, Params: p}, nil

	case handler.OpOCR:
		if arg == "" {
			return Step{Op: op}, nil
		}
		return Step{Op: op, Params: handler.OCRParams{Language: arg}}, nil

	case handler.OpUserDefined:
		if arg == "" {
			return bad("expected a tool name")
		}
		return Step{Op: op, Params: handler.UserDefinedParams{Tool: arg}}, nil

	case handler.OpSavePDF, handler.OpSaveDjVu:
		// the path is taken as is; it may contain commas
		return Step{Op: op, Params: handler.ExportParams{Path: arg}}, nil
	}
	return bad("unknown operation")
}
