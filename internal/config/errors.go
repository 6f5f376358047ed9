package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// File.Validate. Callers match them with errors.Is.
var (
	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the tool timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid tool timeout: must be positive")

	// ErrInvalidTmpWarning is returned for a negative free-space threshold.
	ErrInvalidTmpWarning = errors.New("invalid available-tmp warning: must be non-negative")

	// ErrInvalidResolution is returned when the default resolution is not positive.
	ErrInvalidResolution = errors.New("invalid default resolution: must be positive")

	// ErrInvalidHistoryLimit is returned for a negative undo history limit.
	ErrInvalidHistoryLimit = errors.New("invalid history limit: must be non-negative")

	// ErrInvalidPageRange is returned for a page range other than all, selected or 1.
	ErrInvalidPageRange = errors.New("invalid page range: must be all, selected or 1")

	// ErrConflictingReportFormats is returned when both JSON and Markdown
	// reports are requested.
	ErrConflictingReportFormats = errors.New("--json and --markdown are mutually exclusive")

	// ErrInvalidThreshold is returned for an OCR threshold outside 0-100.
	ErrInvalidThreshold = errors.New("invalid OCR threshold: must be 0-100")

	// ErrInvalidUnpaperDirection is returned for an unpaper direction other than ltr or rtl.
	ErrInvalidUnpaperDirection = errors.New("invalid unpaper direction: must be ltr or rtl")

	// ErrEmptyUserTool is returned when a user-defined tool has no command.
	ErrEmptyUserTool = errors.New("user-defined tool has an empty command")
)
