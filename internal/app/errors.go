package app

import "errors"

var (
	// ErrNoInput is returned by Run when there is nothing to import and the
	// document is empty.
	ErrNoInput = errors.New("no input images")

	// ErrInvalidStep is returned by ParseStep for a malformed step.
	ErrInvalidStep = errors.New("invalid step")
)
