package pipeline

import "errors"

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("pipeline: engine is closed")

	// ErrUnknownOp is returned by Submit for an operation with no handler.
	ErrUnknownOp = errors.New("pipeline: unknown operation")

	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("pipeline: handler panicked")

	// ErrNothingToUndo is reported by an undo job with an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is reported by a redo job with an empty redo stack.
	ErrNothingToRedo = errors.New("nothing to redo")
)
