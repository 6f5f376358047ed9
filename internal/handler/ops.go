package handler

import "github.com/nao1215/scantpaper/internal/pipeline"

// Operation names.
const (
	OpImport             = "import"
	OpRotate             = "rotate"
	OpCrop               = "crop"
	OpSplit              = "split"
	OpNegate             = "negate"
	OpThreshold          = "threshold"
	OpClearOCR           = "clear-ocr"
	OpBrightnessContrast = "brightness-contrast"
	OpUnsharp            = "unsharp"
	OpUnpaper            = "unpaper"
	OpOCR                = "ocr"
	OpUserDefined        = "user-defined"
	OpSavePDF            = "save-pdf"
	OpSaveDjVu           = "save-djvu"
)

// All returns every handler, bound to env.
func All(env *Env) []pipeline.Handler {
	return []pipeline.Handler{
		&Import{env: env},
		&Rotate{env: env},
		&Crop{env: env},
		&Split{env: env},
		&Negate{env: env},
		&Threshold{env: env},
		&ClearOCR{},
		&BrightnessContrast{env: env},
		&Unsharp{env: env},
		&Unpaper{env: env},
		&OCR{env: env},
		&UserDefined{env: env},
		&SavePDF{env: env},
		&SaveDjVu{env: env},
	}
}

// NewRegistry returns a pipeline registry holding All(env).
func NewRegistry(env *Env) *pipeline.Registry {
	return pipeline.NewRegistry(All(env)...)
}
